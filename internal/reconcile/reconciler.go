// Package reconcile compares a client's locally-predicted ship state against
// the host's authoritative snapshot and corrects divergence without fighting
// legitimate in-flight gameplay messages.
//
// A discrepancy at an entity index is only corrected after it has been
// observed in two consecutive reconciliation passes. A create or resolve
// message sent at roughly the same time as a snapshot can race the snapshot
// in flight; correcting on first sight would undo a legitimate local event
// before its own message arrives. One tick of hysteresis is enough to let
// the in-flight message land.
package reconcile

import (
	"github.com/onewordstudios/sweetspace-sub002/internal/game"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// scalarTolerance is how far ship health or the timer may drift before being
// snapped to the authoritative value. Scalars are cheap to correct and
// frequently updated, so they get no hysteresis.
const scalarTolerance = 1.0

// Reconciler buffers discrepancies from one snapshot so they are only
// resolved if still present in the next one. Not safe for concurrent use;
// it runs on the game-loop goroutine.
type Reconciler struct {
	// Persistent caches of last pass's unconforming entities.
	// Bool records the direction of the mismatch (local active state).
	breachCache map[int]bool
	doorCache   map[int]bool
	btnCache    map[int]bool
}

// New creates a Reconciler with empty drift caches.
func New() *Reconciler {
	return &Reconciler{
		breachCache: make(map[int]bool),
		doorCache:   make(map[int]bool),
		btnCache:    make(map[int]bool),
	}
}

// Encode serializes the authoritative game state into a StateSync message.
// Host only; the game must be in progress.
func Encode(s *game.ShipModel, level uint8, parity bool) []byte {
	breaches, doors, btns := s.Breaches(), s.Doors(), s.Buttons()

	data := make([]byte, 0, 7+4*len(breaches)+3*len(doors)+4*len(btns))
	data = append(data, byte(protocol.StateSync))
	data = append(data, protocol.EncodeLevel(level, parity))

	health := s.Health()
	if health < 0 {
		health = 0
	}
	data = protocol.AppendFloat(data, health)
	data = protocol.AppendFloat(data, s.TimeLeft())

	data = append(data, byte(len(breaches)))
	for _, b := range breaches {
		data = append(data, byte(b.Health), byte(b.Player&0xFF))
		data = protocol.AppendFloat(data, b.Angle)
	}

	data = append(data, byte(len(doors)))
	for _, d := range doors {
		if !d.Active {
			data = append(data, 0, 0, 0)
		} else {
			data = append(data, 1)
			data = protocol.AppendFloat(data, d.Angle)
		}
	}

	data = append(data, byte(len(btns)))
	for _, b := range btns {
		if !b.Active {
			data = append(data, 0, 0, 0, 0)
		} else {
			data = append(data, 1)
			data = protocol.AppendFloat(data, b.Angle)
			data = append(data, byte(b.Pair))
		}
	}
	return data
}

// unpaired holds one half of a button pair found broken mid-scan, until its
// partner shows up later in the same pass.
type unpaired struct {
	idx   int
	angle float32
}

// syncResult classifies one entity-array scan of a snapshot.
type syncResult int

const (
	syncOK syncResult = iota
	// syncTruncated means the snapshot ended mid-array. The whole pass is
	// abandoned: later arrays must not be parsed from a stranded reader, and
	// the pass's partial observations must not be committed.
	syncTruncated
	// syncMismatch means the array length does not match the local level.
	syncMismatch
)

// Reconcile compares the local model against the incoming StateSync message
// and corrects any divergence that has persisted for two consecutive passes.
// Client only.
//
// A false return is fatal: the entity arrays in the snapshot do not match
// the local level topology, so the two peers have different level content
// loaded and the caller must remove this player from the room. A snapshot
// for a different level or parity is stale, and a truncated snapshot is
// malformed; both are dropped without touching the drift caches, not fatal.
func (r *Reconciler) Reconcile(s *game.ShipModel, message []byte, level uint8, parity bool) bool {
	rd := reader{data: message, pos: 1}

	lvlByte, ok := rd.u8()
	if !ok {
		util.LogWarning("truncated state sync; dropping")
		return true
	}
	msgLevel, msgParity := protocol.DecodeLevel(lvlByte)
	if msgLevel != level || msgParity != parity {
		util.LogDebug("state sync for level %d (local %d); dropping as stale", msgLevel, level)
		return true
	}

	health, ok1 := rd.fixed()
	timer, ok2 := rd.fixed()
	if !ok1 || !ok2 {
		util.LogWarning("truncated state sync; dropping")
		return true
	}

	// Scalars snap immediately; no hysteresis.
	if abs(s.Health()-health) > scalarTolerance {
		s.SetHealth(health)
	}
	if abs(s.TimeLeft()-timer) > scalarTolerance {
		s.SetTimeLeft(timer)
	}

	localBreach := make(map[int]bool)
	localDoor := make(map[int]bool)
	localBtn := make(map[int]bool)

	res := r.reconcileBreaches(s, &rd, localBreach)
	if res == syncOK {
		res = r.reconcileDoors(s, &rd, localDoor)
	}
	if res == syncOK {
		res = r.reconcileButtons(s, &rd, localBtn)
	}
	switch res {
	case syncTruncated:
		util.LogWarning("truncated state sync; dropping")
		return true
	case syncMismatch:
		return false
	}

	// Commit this pass's observations wholesale, replacing last pass's.
	// This bounds the hysteresis window to exactly one tick.
	r.breachCache = localBreach
	r.doorCache = localDoor
	r.btnCache = localBtn
	return true
}

func (r *Reconciler) reconcileBreaches(s *game.ShipModel, rd *reader, local map[int]bool) syncResult {
	breaches := s.Breaches()
	count, ok := rd.u8()
	if !ok {
		return syncTruncated
	}
	if int(count) != len(breaches) {
		util.LogError("breach array size discrepancy; local %d but server %d", len(breaches), count)
		return syncMismatch
	}
	for i := range breaches {
		health, _ := rd.u8()
		player, _ := rd.u8()
		angle, ok := rd.fixed()
		if !ok {
			return syncTruncated
		}

		switch {
		case breaches[i].Health == 0 && health > 0:
			if was, seen := r.breachCache[i]; seen && was {
				util.LogInfo("found resolved breach that should be unresolved, id %d", i)
				s.CreateBreach(angle, int(health), int(player), i)
			} else {
				local[i] = true
			}
		case breaches[i].Health > 0 && health == 0:
			if was, seen := r.breachCache[i]; seen && !was {
				util.LogInfo("found unresolved breach that should be resolved, id %d", i)
				for j := breaches[i].Health; j > 0; j-- {
					s.ResolveBreach(i)
				}
			} else {
				local[i] = false
			}
		}
	}
	return syncOK
}

func (r *Reconciler) reconcileDoors(s *game.ShipModel, rd *reader, local map[int]bool) syncResult {
	doors := s.Doors()
	count, ok := rd.u8()
	if !ok {
		return syncTruncated
	}
	if int(count) != len(doors) {
		util.LogError("door array size discrepancy; local %d but server %d", len(doors), count)
		return syncMismatch
	}
	for i := range doors {
		active, _ := rd.u8()
		if active != 0 {
			angle, ok := rd.fixed()
			if !ok {
				return syncTruncated
			}
			if abs(doors[i].Angle-angle) > protocol.FloatEpsilon || !doors[i].Active {
				if was, seen := r.doorCache[i]; seen && was {
					util.LogInfo("found open door that should be closed, id %d", i)
					s.CreateDoor(angle, i)
				} else {
					local[i] = true
				}
			}
		} else {
			if _, ok := rd.fixed(); !ok { // skip the two padding bytes
				return syncTruncated
			}
			if doors[i].Active {
				if was, seen := r.doorCache[i]; seen && !was {
					util.LogInfo("found closed door that should be open, id %d", i)
					doors[i].Reset()
				} else {
					local[i] = false
				}
			}
		}
	}
	return syncOK
}

func (r *Reconciler) reconcileButtons(s *game.ShipModel, rd *reader, local map[int]bool) syncResult {
	btns := s.Buttons()
	count, ok := rd.u8()
	if !ok {
		return syncTruncated
	}
	if int(count) != len(btns) {
		util.LogError("button array size discrepancy; local %d but server %d", len(btns), count)
		return syncMismatch
	}

	// Buttons are created in pairs sharing one message, so a broken button
	// found mid-scan is parked here, keyed by its declared pair index, until
	// its partner turns up later in the same pass.
	pending := make(map[int]unpaired)

	for i := range btns {
		active, _ := rd.u8()
		if active != 0 {
			angle, ok := rd.fixed()
			pair, ok2 := rd.u8()
			if !ok || !ok2 {
				return syncTruncated
			}
			if abs(btns[i].Angle-angle) > protocol.FloatEpsilon || !btns[i].Active {
				util.LogInfo("found fixed button that should be broken, id %d", i)
				if first, found := pending[i]; found {
					// Partner declared us earlier this pass.
					if was, seen := r.btnCache[i]; seen && was {
						s.CreateButton(first.angle, first.idx, angle, i)
					} else {
						local[i] = true
						local[first.idx] = true
					}
					delete(pending, i)
				} else {
					pending[int(pair)] = unpaired{idx: i, angle: angle}
				}
			}
		} else {
			// Skip angle + pair padding.
			if _, ok := rd.fixed(); !ok {
				return syncTruncated
			}
			if _, ok := rd.u8(); !ok {
				return syncTruncated
			}
			if btns[i].Active {
				if was, seen := r.btnCache[i]; seen && !was {
					util.LogInfo("found active button that should be fixed, id %d; resolving both", i)
					s.ResolveButton(i)
				} else {
					local[i] = false
				}
			}
		}
	}
	return syncOK
}

// Reset clears all persistent drift caches; call when leaving or restarting
// a session.
func (r *Reconciler) Reset() {
	r.breachCache = make(map[int]bool)
	r.doorCache = make(map[int]bool)
	r.btnCache = make(map[int]bool)
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// reader is a bounds-checked cursor over a snapshot message.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) u8() (uint8, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	v := r.data[r.pos]
	r.pos++
	return v, true
}

func (r *reader) fixed() (float32, bool) {
	if r.pos+1 >= len(r.data) {
		return 0, false
	}
	v := protocol.DecodeFloat(r.data[r.pos], r.data[r.pos+1])
	r.pos += 2
	return v, true
}
