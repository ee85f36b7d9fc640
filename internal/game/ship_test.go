package game_test

import (
	"testing"

	"github.com/onewordstudios/sweetspace-sub002/internal/game"
)

func newTestShip() *game.ShipModel {
	return game.NewShipModel(4, 3, 3, 4, 10, 120)
}

func TestBreachLifecycle(t *testing.T) {
	s := newTestShip()

	if !s.CreateBreach(90, game.DefaultBreachHealth, 1, 0) {
		t.Fatal("CreateBreach rejected valid id")
	}
	b := s.Breaches()[0]
	if !b.Active() || b.Player != 1 || b.Angle != 90 {
		t.Errorf("breach not created: %+v", b)
	}

	for i := 0; i < game.DefaultBreachHealth; i++ {
		if !s.ResolveBreach(0) {
			t.Fatal("ResolveBreach rejected valid id")
		}
	}
	if b.Active() {
		t.Error("breach still active after full repair")
	}

	// Extra repairs must not drive health negative.
	s.ResolveBreach(0)
	if b.Health != 0 {
		t.Errorf("health went negative: %d", b.Health)
	}

	if s.CreateBreach(90, 3, 1, 99) {
		t.Error("CreateBreach accepted out-of-range id")
	}
}

func TestDoorOpensWithTwoPlayers(t *testing.T) {
	s := newTestShip()
	s.CreateDoor(180, 0)

	if !s.FlagDoor(0, 1, 1) {
		t.Fatal("FlagDoor rejected valid door")
	}
	if !s.Doors()[0].Active {
		t.Error("door opened with a single player")
	}

	s.FlagDoor(0, 2, 1)
	if s.Doors()[0].Active {
		t.Error("door did not open with two players")
	}
}

func TestDoorStepOff(t *testing.T) {
	s := newTestShip()
	s.CreateDoor(180, 0)

	s.FlagDoor(0, 1, 1)
	s.FlagDoor(0, 1, 0)
	s.FlagDoor(0, 2, 1)
	if !s.Doors()[0].Active {
		t.Error("door opened with one player after the other stepped off")
	}
}

func TestUnopenableDoor(t *testing.T) {
	s := newTestShip()
	s.CreateUnopenable(45, 1)

	s.FlagDoor(1, 0, 1)
	s.FlagDoor(1, 1, 1)
	if !s.Doors()[1].Active {
		t.Error("unopenable door opened")
	}
}

func TestButtonPair(t *testing.T) {
	s := newTestShip()

	if !s.CreateButton(30, 0, 210, 2) {
		t.Fatal("CreateButton rejected valid pair")
	}
	b0, b2 := s.Buttons()[0], s.Buttons()[2]
	if !b0.Active || !b2.Active || b0.Pair != 2 || b2.Pair != 0 {
		t.Errorf("pair not wired: %+v %+v", b0, b2)
	}

	s.FlagButton(0)
	if !b0.Jumped {
		t.Error("button not flagged")
	}

	s.ResolveButton(0)
	if b0.Active || b2.Active || b0.Jumped {
		t.Error("resolving one button must clear both halves")
	}
}

func TestAllHandsChallenge(t *testing.T) {
	s := newTestShip()

	s.CreateAllTask()
	if !s.StabilizerActive() {
		t.Fatal("challenge not active")
	}

	before := s.Health()
	s.FailAllTask()
	if s.StabilizerActive() {
		t.Error("challenge still active after failure")
	}
	if s.Health() >= before {
		t.Errorf("failure did not cost health: %v -> %v", before, s.Health())
	}

	s.CreateAllTask()
	s.SucceedAllTask()
	if s.StabilizerActive() || !s.StabilizerTutorial {
		t.Error("success not recorded")
	}
}

func TestTimerAndLevelOver(t *testing.T) {
	s := newTestShip()

	if s.LevelOver() {
		t.Fatal("fresh level already over")
	}

	s.SetTimeLeft(0.5)
	if !s.LevelOver() {
		t.Error("level not over with timer below a second")
	}

	s.SetTimeless(true)
	if s.LevelOver() {
		t.Error("timeless level ended by the timer")
	}

	s.SetHealth(0)
	if !s.LevelOver() {
		t.Error("level not over at zero health")
	}
}

func TestTimelessTimerFrozen(t *testing.T) {
	s := newTestShip()
	s.SetTimeless(true)
	s.UpdateTimer(5)
	if s.TimeLeft() != 120 {
		t.Errorf("timeless timer moved: %v", s.TimeLeft())
	}

	s.SetTimeless(false)
	s.UpdateTimer(5)
	if s.TimeLeft() != 115 {
		t.Errorf("timer did not advance: %v", s.TimeLeft())
	}
}

func TestTutorialLevels(t *testing.T) {
	tutorials := map[uint8]bool{0: true, 2: true, 6: true, 10: true}
	for level := uint8(0); level < game.MaxLevels; level++ {
		if game.IsTutorial(level) != tutorials[level] {
			t.Errorf("level %d: IsTutorial = %t", level, !tutorials[level])
		}
	}
	if !game.IsTutorial(0) || game.LevelName(4) == "" {
		t.Error("level table wired wrong")
	}
}
