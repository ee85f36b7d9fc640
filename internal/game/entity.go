// Package game holds the shared game-state model that the session controller
// and state reconciler mutate. Gameplay resolution rules (collision, win
// conditions, scoring) live elsewhere; this package only models the state
// the network layer needs to read and write.
package game

// NoPlayer marks a breach or door slot not owned by any player.
const NoPlayer = -1

// DefaultBreachHealth is the number of repairs a freshly created breach needs.
const DefaultBreachHealth = 3

// Donut is one player's avatar on the ship ring.
type Donut struct {
	Angle    float32
	Velocity float32
	Active   bool
	Jumping  bool
}

// StartJump begins a jump; the animation layer clears Jumping on landing.
func (d *Donut) StartJump() { d.Jumping = true }

// Breach is a hull breach. A breach with zero health is resolved.
type Breach struct {
	Health int
	Player int
	Angle  float32
}

// Active returns true while the breach still needs repairs.
func (b *Breach) Active() bool { return b.Health > 0 }

// Door is a dual task: two players must stand on it to open it.
// An inactive door is not present in the level right now.
type Door struct {
	Active     bool
	Angle      float32
	Unopenable bool

	// playersOn is a bitmask of player IDs currently holding the door.
	playersOn uint8
}

// Flag records a player stepping on (flag 1) or off (flag 0) the door.
func (dr *Door) Flag(player uint8, flag uint8) {
	if flag == 0 {
		dr.playersOn &^= 1 << player
	} else {
		dr.playersOn |= 1 << player
	}
}

// PlayerCount returns how many players are currently holding the door.
func (dr *Door) PlayerCount() int {
	n := 0
	for m := dr.playersOn; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// Reset closes out the door, removing it from play.
func (dr *Door) Reset() {
	dr.Active = false
	dr.Unopenable = false
	dr.playersOn = 0
}

// Button is one half of a paired task: both buttons of a pair must be
// pressed to fix them.
type Button struct {
	Active bool
	Angle  float32
	Pair   int
	Jumped bool
}
