package reconcile_test

import (
	"testing"

	"github.com/onewordstudios/sweetspace-sub002/internal/game"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/reconcile"
)

const (
	testLevel  = uint8(4)
	testParity = true
)

func newShip() *game.ShipModel {
	return game.NewShipModel(2, 2, 2, 2, 10, 100)
}

func pass(t *testing.T, r *reconcile.Reconciler, client, host *game.ShipModel) {
	t.Helper()
	snap := reconcile.Encode(host, testLevel, testParity)
	if !r.Reconcile(client, snap, testLevel, testParity) {
		t.Fatal("Reconcile reported fatal mismatch")
	}
}

func TestIdenticalStateUntouched(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)
	client.CreateBreach(90, 3, 1, 0)

	r := reconcile.New()
	pass(t, r, client, host)
	pass(t, r, client, host)

	b := client.Breaches()[0]
	if b.Health != 3 || b.Player != 1 {
		t.Errorf("matching breach was modified: %+v", b)
	}
	if client.Health() != 10 || client.TimeLeft() != 100 {
		t.Errorf("matching scalars were modified: %v %v", client.Health(), client.TimeLeft())
	}
}

func TestScalarsSnapWithoutHysteresis(t *testing.T) {
	host, client := newShip(), newShip()
	host.SetHealth(3)
	host.SetTimeLeft(42)

	r := reconcile.New()
	pass(t, r, client, host)

	if client.Health() != 3 {
		t.Errorf("health not snapped on first pass: %v", client.Health())
	}
	if client.TimeLeft() != 42 {
		t.Errorf("timer not snapped on first pass: %v", client.TimeLeft())
	}
}

func TestScalarsInsideToleranceKept(t *testing.T) {
	host, client := newShip(), newShip()
	host.SetHealth(10)
	client.SetHealth(9.5)

	r := reconcile.New()
	pass(t, r, client, host)

	if client.Health() != 9.5 {
		t.Errorf("in-tolerance health was snapped: %v", client.Health())
	}
}

func TestBreachCorrectionNeedsTwoPasses(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)

	r := reconcile.New()

	pass(t, r, client, host)
	if client.Breaches()[0].Active() {
		t.Fatal("breach corrected on first sight")
	}

	pass(t, r, client, host)
	b := client.Breaches()[0]
	if !b.Active() || b.Health != 3 || b.Player != 1 {
		t.Fatalf("breach not corrected on second pass: %+v", b)
	}
	if diff := b.Angle - 90; diff > protocol.FloatEpsilon || diff < -protocol.FloatEpsilon {
		t.Errorf("breach angle not applied: %v", b.Angle)
	}
}

func TestBreachResolvedOnHostDrainsLocal(t *testing.T) {
	host, client := newShip(), newShip()
	client.CreateBreach(90, 3, 1, 0)

	r := reconcile.New()

	pass(t, r, client, host)
	if !client.Breaches()[0].Active() {
		t.Fatal("breach resolved on first sight")
	}

	pass(t, r, client, host)
	if client.Breaches()[0].Active() {
		t.Error("breach not resolved on second pass")
	}
}

func TestInterveningMessageCancelsCorrection(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)

	r := reconcile.New()
	pass(t, r, client, host)

	// The in-flight create lands between the two snapshots.
	client.CreateBreach(90, 3, 1, 0)

	pass(t, r, client, host)
	if client.Breaches()[0].Health != 3 {
		t.Errorf("converged breach was re-corrected: %+v", client.Breaches()[0])
	}
}

func TestDoorCorrectionNeedsTwoPasses(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateDoor(45, 0)
	client.CreateDoor(45, 1) // open locally, closed on the host

	r := reconcile.New()

	pass(t, r, client, host)
	if client.Doors()[0].Active || !client.Doors()[1].Active {
		t.Fatal("doors corrected on first sight")
	}

	pass(t, r, client, host)
	if !client.Doors()[0].Active {
		t.Error("missing door not created on second pass")
	}
	if client.Doors()[1].Active {
		t.Error("extra door not closed on second pass")
	}
}

func TestButtonPairCorrectedTogether(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateButton(30, 0, 210, 1)

	r := reconcile.New()

	pass(t, r, client, host)
	if client.Buttons()[0].Active || client.Buttons()[1].Active {
		t.Fatal("buttons corrected on first sight")
	}

	pass(t, r, client, host)
	b0, b1 := client.Buttons()[0], client.Buttons()[1]
	if !b0.Active || !b1.Active {
		t.Fatalf("button pair not created on second pass: %+v %+v", b0, b1)
	}
	if b0.Pair != 1 || b1.Pair != 0 {
		t.Errorf("pair indices wrong: %d %d", b0.Pair, b1.Pair)
	}
}

func TestButtonResolvedOnHost(t *testing.T) {
	host, client := newShip(), newShip()
	client.CreateButton(30, 0, 210, 1)

	r := reconcile.New()
	pass(t, r, client, host)
	pass(t, r, client, host)

	if client.Buttons()[0].Active || client.Buttons()[1].Active {
		t.Error("stale button pair not resolved on second pass")
	}
}

func TestStaleSnapshotDropped(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)
	snap := reconcile.Encode(host, testLevel, !testParity)

	r := reconcile.New()
	for i := 0; i < 3; i++ {
		if !r.Reconcile(client, snap, testLevel, testParity) {
			t.Fatal("stale snapshot reported as fatal")
		}
	}
	if client.Breaches()[0].Active() {
		t.Error("stale snapshot mutated the model")
	}
}

func TestTopologyMismatchFatal(t *testing.T) {
	host := game.NewShipModel(2, 3, 2, 2, 10, 100)
	client := newShip()

	r := reconcile.New()
	snap := reconcile.Encode(host, testLevel, testParity)
	if r.Reconcile(client, snap, testLevel, testParity) {
		t.Error("breach count mismatch not reported as fatal")
	}
}

func TestTruncatedSnapshotDropped(t *testing.T) {
	host := newShip()
	host.CreateBreach(90, 3, 1, 0)
	snap := reconcile.Encode(host, testLevel, testParity)

	for size := 1; size < len(snap); size++ {
		client := newShip()
		r := reconcile.New()
		if !r.Reconcile(client, snap[:size], testLevel, testParity) {
			t.Errorf("truncation at %d bytes reported as fatal", size)
		}
		if client.Breaches()[0].Active() {
			t.Errorf("truncation at %d bytes mutated the model", size)
		}
	}
}

func TestTruncatedPassDoesNotCommitDrift(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)
	snap := reconcile.Encode(host, testLevel, testParity)

	r := reconcile.New()

	// Cut mid-record: the breach count plus half of the first breach survive.
	if !r.Reconcile(client, snap[:9], testLevel, testParity) {
		t.Fatal("truncated snapshot reported as fatal")
	}

	// The next complete pass is still the first observation of the drift, so
	// no correction may land yet.
	pass(t, r, client, host)
	if client.Breaches()[0].Active() {
		t.Error("correction applied after only one complete pass")
	}

	pass(t, r, client, host)
	if !client.Breaches()[0].Active() {
		t.Error("correction missing after two complete passes")
	}
}

func TestResetClearsHysteresis(t *testing.T) {
	host, client := newShip(), newShip()
	host.CreateBreach(90, 3, 1, 0)

	r := reconcile.New()
	pass(t, r, client, host)
	r.Reset()
	pass(t, r, client, host)

	if client.Breaches()[0].Active() {
		t.Error("correction applied across a reset")
	}
}

func TestEncodeClampsNegativeHealth(t *testing.T) {
	host := newShip()
	host.SetHealth(-2)
	snap := reconcile.Encode(host, testLevel, testParity)

	// Type byte, level byte, then the two health bytes.
	if protocol.DecodeFloat(snap[2], snap[3]) != 0 {
		t.Errorf("negative health not clamped: % x", snap[2:4])
	}
}
