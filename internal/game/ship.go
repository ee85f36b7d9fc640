package game

// ShipModel is the authoritative (host) or predicted (client) state of one
// level: the players aboard, the open tasks, ship health and the countdown
// timer.
//
// The model is exclusively owned by the game loop; only the session
// controller's dispatch handlers and the reconciler's correction step mutate
// it, and both run on the game-loop goroutine.
type ShipModel struct {
	donuts   []*Donut
	breaches []*Breach
	doors    []*Door
	buttons  []*Button

	health   float32
	timer    float32
	timeless bool

	// stabilizerActive is true while an all-hands roll challenge is running.
	stabilizerActive bool
	// StabilizerTutorial is set when the all-hands challenge succeeds during
	// the tutorial; read by the tutorial UI.
	StabilizerTutorial bool
}

// NewShipModel creates a ship with fixed-size entity arrays. Array sizes come
// from the loaded level and must match on every peer; the reconciler treats a
// size mismatch as fatal.
func NewShipModel(numPlayers, numBreaches, numDoors, numButtons int, initialHealth, startTime float32) *ShipModel {
	s := &ShipModel{
		donuts:   make([]*Donut, numPlayers),
		breaches: make([]*Breach, numBreaches),
		doors:    make([]*Door, numDoors),
		buttons:  make([]*Button, numButtons),
		health:   initialHealth,
		timer:    startTime,
	}
	for i := range s.donuts {
		s.donuts[i] = &Donut{Active: true}
	}
	for i := range s.breaches {
		s.breaches[i] = &Breach{Player: NoPlayer}
	}
	for i := range s.doors {
		s.doors[i] = &Door{}
	}
	for i := range s.buttons {
		s.buttons[i] = &Button{Pair: -1}
	}
	return s
}

// Donuts returns the player avatars, indexed by player ID.
func (s *ShipModel) Donuts() []*Donut { return s.donuts }

// Breaches returns the breach array for this level.
func (s *ShipModel) Breaches() []*Breach { return s.breaches }

// Doors returns the door array for this level.
func (s *ShipModel) Doors() []*Door { return s.doors }

// Buttons returns the button array for this level.
func (s *ShipModel) Buttons() []*Button { return s.buttons }

// Health returns the current ship health.
func (s *ShipModel) Health() float32 { return s.health }

// SetHealth overwrites the ship health.
func (s *ShipModel) SetHealth(h float32) { s.health = h }

// DecHealth subtracts h from the ship health.
func (s *ShipModel) DecHealth(h float32) { s.health -= h }

// TimeLeft returns the seconds remaining on the level countdown.
func (s *ShipModel) TimeLeft() float32 { return s.timer }

// InitTimer resets the countdown to startTime.
func (s *ShipModel) InitTimer(startTime float32) { s.timer = startTime }

// SetTimeLeft overwrites the countdown; used by the reconciler.
func (s *ShipModel) SetTimeLeft(t float32) { s.timer = t }

// UpdateTimer advances the countdown by one frame, unless timeless.
func (s *ShipModel) UpdateTimer(dt float32) {
	if !s.timeless {
		s.timer -= dt
	}
}

// SetTimeless marks the level as untimed (tutorials) or timed.
func (s *ShipModel) SetTimeless(t bool) { s.timeless = t }

// LevelOver returns true once the level has ended, in either direction.
func (s *ShipModel) LevelOver() bool {
	return s.health <= 0 || (!s.timeless && s.timer < 1)
}

// CreateBreach opens (or re-opens) the breach at index id.
func (s *ShipModel) CreateBreach(angle float32, health, player, id int) bool {
	if id < 0 || id >= len(s.breaches) {
		return false
	}
	b := s.breaches[id]
	b.Angle = angle
	b.Health = health
	b.Player = player
	return true
}

// ResolveBreach applies one repair to the breach at index id.
func (s *ShipModel) ResolveBreach(id int) bool {
	if id < 0 || id >= len(s.breaches) {
		return false
	}
	b := s.breaches[id]
	if b.Health > 0 {
		b.Health--
	}
	return true
}

// CreateDoor places an openable door at index id.
func (s *ShipModel) CreateDoor(angle float32, id int) bool {
	if id < 0 || id >= len(s.doors) {
		return false
	}
	d := s.doors[id]
	d.Reset()
	d.Active = true
	d.Angle = angle
	return true
}

// CreateUnopenable places an unopenable door at index id. It only clears
// when the level ends or the host's snapshot says so.
func (s *ShipModel) CreateUnopenable(angle float32, id int) bool {
	if !s.CreateDoor(angle, id) {
		return false
	}
	s.doors[id].Unopenable = true
	return true
}

// FlagDoor records a player on or off the door; when two players hold an
// openable door it opens and leaves play.
func (s *ShipModel) FlagDoor(id int, player uint8, flag uint8) bool {
	if id < 0 || id >= len(s.doors) {
		return false
	}
	d := s.doors[id]
	if !d.Active {
		return false
	}
	d.Flag(player, flag)
	if !d.Unopenable && d.PlayerCount() >= 2 {
		d.Reset()
	}
	return true
}

// CreateButton places both halves of a button pair.
func (s *ShipModel) CreateButton(angle1 float32, id1 int, angle2 float32, id2 int) bool {
	if id1 < 0 || id1 >= len(s.buttons) || id2 < 0 || id2 >= len(s.buttons) {
		return false
	}
	b1, b2 := s.buttons[id1], s.buttons[id2]
	b1.Active, b1.Angle, b1.Pair, b1.Jumped = true, angle1, id2, false
	b2.Active, b2.Angle, b2.Pair, b2.Jumped = true, angle2, id1, false
	return true
}

// FlagButton marks the button at index id as pressed.
func (s *ShipModel) FlagButton(id int) bool {
	if id < 0 || id >= len(s.buttons) {
		return false
	}
	s.buttons[id].Jumped = true
	return true
}

// ResolveButton fixes the button at index id and its pair partner.
func (s *ShipModel) ResolveButton(id int) bool {
	if id < 0 || id >= len(s.buttons) {
		return false
	}
	b := s.buttons[id]
	b.Active = false
	b.Jumped = false
	if b.Pair >= 0 && b.Pair < len(s.buttons) {
		p := s.buttons[b.Pair]
		p.Active = false
		p.Jumped = false
	}
	return true
}

// CreateAllTask starts the all-hands roll challenge.
func (s *ShipModel) CreateAllTask() { s.stabilizerActive = true }

// FailAllTask ends the challenge with a health penalty.
func (s *ShipModel) FailAllTask() {
	s.stabilizerActive = false
	s.DecHealth(allTaskPenalty)
}

// SucceedAllTask ends the challenge successfully.
func (s *ShipModel) SucceedAllTask() {
	s.stabilizerActive = false
	s.StabilizerTutorial = true
}

// StabilizerActive reports whether the all-hands challenge is running.
func (s *ShipModel) StabilizerActive() bool { return s.stabilizerActive }

// allTaskPenalty is the health cost of a failed all-hands challenge.
const allTaskPenalty = 7
