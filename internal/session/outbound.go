package session

import (
	"github.com/onewordstudios/sweetspace-sub002/internal/game"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// sendData broadcasts one fixed-layout gameplay message.
//
// Angle is the angle, if applicable. ID is the entity being acted on, if
// applicable. Remaining fields are filled front to back in the same order
// the calling method takes its arguments; unused fields carry -1.
func (s *Session) sendData(t protocol.MessageType, angle float32, id, data1, data2 int16, data3 float32) {
	if s.conn == nil {
		util.LogError("attempted to send on a closed session; dropping")
		return
	}
	s.conn.Broadcast(protocol.Encode(protocol.Message{
		Type:  t,
		Angle: angle,
		ID:    id,
		Data1: data1,
		Data2: data2,
		Data3: data3,
	}))
}

// ---------------------------------------------------------------------------
// Game management
// ---------------------------------------------------------------------------

// startLevelInternal switches the session onto the given level and raises
// the event the game loop needs to act on. Advancing past the last level
// ends the campaign instead; the connection stays up.
func (s *Session) startLevelInternal(num uint8, parity bool) {
	s.levelNum = int(num)
	s.levelParity = parity
	s.reconciler.Reset()
	if int(num) >= game.MaxLevels {
		s.events = EventEndGame
		s.status = GameEnded
	} else {
		s.events = EventLoadLevel
	}
}

// StartGame locks the room and starts gameplay on the given level. Any
// seated player may start the game; everyone else hears it as a StartGame
// message.
func (s *Session) StartGame(level uint8) {
	switch s.status {
	case HostWaitingOnOthers, ClientWaitingOnOthers:
	default:
		util.LogError("trying to start game during invalid state %d", s.status)
		return
	}

	if s.skipTutorial {
		for game.IsTutorial(level) {
			util.LogDebug("level %d is a tutorial; skipping", level)
			level++
		}
	}

	s.conn.Broadcast(protocol.NewStartGame(level))
	s.levelNum = int(level)
	s.maxPlayers = s.numPlayers
	s.status = GameStart
	s.reconciler.Reset()
	s.conn.MarkStarted()
}

// RestartGame replays the current level. The parity flip lets peers discard
// state snapshots from the pre-restart run.
func (s *Session) RestartGame() {
	if s.status != GameStart {
		util.LogError("trying to restart game during invalid state %d", s.status)
		return
	}

	s.levelParity = !s.levelParity
	s.conn.Broadcast(protocol.NewRestartGame(s.levelParity))
	s.startLevelInternal(uint8(s.levelNum), s.levelParity)
}

// NextLevel advances to the next level, skipping tutorials if configured.
func (s *Session) NextLevel() {
	if s.status != GameStart {
		util.LogError("trying to advance level during invalid state %d", s.status)
		return
	}

	level := uint8(s.levelNum + 1)
	if s.skipTutorial {
		for game.IsTutorial(level) {
			util.LogDebug("level %d is a tutorial; skipping", level)
			level++
		}
	}
	s.levelParity = !s.levelParity
	s.startLevelInternal(level, s.levelParity)
	s.conn.Broadcast(protocol.NewNextLevel(level, s.levelParity))
}

// ---------------------------------------------------------------------------
// Gameplay actions
// ---------------------------------------------------------------------------

// CreateBreach announces a new breach assigned to a player.
func (s *Session) CreateBreach(angle float32, player, id uint8) {
	s.sendData(protocol.BreachCreate, angle, int16(id), int16(player), -1, -1)
	util.LogDebug("creating breach id %d player %d angle %f", id, player, angle)
}

// ResolveBreach announces one repair on a breach.
func (s *Session) ResolveBreach(id uint8) {
	s.sendData(protocol.BreachShrink, -1, int16(id), -1, -1, -1)
}

// CreateDualTask announces a new door.
func (s *Session) CreateDualTask(angle float32, id uint8) {
	s.sendData(protocol.DualCreate, angle, int16(id), -1, -1, -1)
}

// FlagDualTask announces a player stepping on (flag 1) or off (flag 0) a door.
func (s *Session) FlagDualTask(id, player, flag uint8) {
	s.sendData(protocol.DualResolve, -1, int16(id), int16(player), int16(flag), -1)
}

// CreateButtonTask announces a new button pair.
func (s *Session) CreateButtonTask(angle1 float32, id1 uint8, angle2 float32, id2 uint8) {
	s.sendData(protocol.ButtonCreate, angle1, int16(id1), int16(id2), -1, angle2)
}

// FlagButton announces that a button has been pressed.
func (s *Session) FlagButton(id uint8) {
	s.sendData(protocol.ButtonFlag, -1, int16(id), -1, -1, -1)
}

// ResolveButton announces that a button pair has been fixed.
func (s *Session) ResolveButton(id uint8) {
	s.sendData(protocol.ButtonResolve, -1, int16(id), -1, -1, -1)
}

// CreateAllTask announces an all-hands challenge targeted at a player.
func (s *Session) CreateAllTask(player uint8) {
	s.sendData(protocol.AllCreate, -1, int16(player), -1, -1, -1)
}

// FailAllTask announces that the all-hands challenge failed.
func (s *Session) FailAllTask() {
	s.sendData(protocol.AllFail, -1, -1, -1, -1, -1)
}

// SucceedAllTask announces that the all-hands challenge succeeded.
func (s *Session) SucceedAllTask() {
	s.sendData(protocol.AllSucceed, -1, -1, -1, -1, -1)
}

// ForceWinLevel announces an immediate level win.
func (s *Session) ForceWinLevel() {
	s.sendData(protocol.ForceWin, -1, -1, -1, -1, -1)
}

// Jump announces a player jumping.
func (s *Session) Jump(player uint8) {
	s.sendData(protocol.Jump, -1, int16(player), -1, -1, -1)
}
