package session

import (
	"github.com/onewordstudios/sweetspace-sub002/internal/game"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/reconcile"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// Update drives the session by one frame. During matchmaking the state
// argument is ignored and may be nil; during gameplay it is the ship model
// that inbound messages mutate.
func (s *Session) Update(state *game.ShipModel) {
	if s.status == GameStart {
		s.updateGameplay(state)
		return
	}
	s.updateMatchmaking()
}

// ---------------------------------------------------------------------------
// Matchmaking phase
// ---------------------------------------------------------------------------

func (s *Session) updateMatchmaking() {
	switch s.status {
	case Uninitialized, ClientRoomInvalid, ClientRoomFull, ClientApiMismatch,
		Disconnected, GameEnded:
		return
	default:
	}
	if s.conn == nil {
		return
	}

	s.conn.Receive(s.dispatchMatchmaking)

	// Terminal denials: the connection has nothing more to say.
	switch s.status {
	case ClientApiMismatch, ClientRoomInvalid, ClientRoomFull:
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) dispatchMatchmaking(data []byte) {
	if len(data) == 0 {
		return
	}

	switch t := protocol.MessageType(data[0]); t {
	case protocol.GenericError:
		if s.playerID == 0 {
			if s.status != HostWaitingOnOthers {
				s.status = HostError
			} else {
				util.LogDebug("error while waiting on others; swallowing")
			}
		} else {
			s.status = ClientError
		}

	case protocol.ApiMismatch:
		util.LogWarning("api mismatch; aborting")
		if s.playerID == 0 {
			s.status = HostApiMismatch
		} else {
			s.status = ClientApiMismatch
		}

	case protocol.AssignedRoom:
		if s.playerID != 0 {
			return
		}
		roomID, err := protocol.ParseAssignedRoom(data)
		if err != nil {
			util.LogWarning("bad room assignment: %v", err)
			return
		}
		s.activePlayers[0] = true
		s.roomID = roomID
		util.LogInfo("got room ID %s", roomID)
		s.status = HostWaitingOnOthers

	case protocol.JoinRoom:
		s.dispatchJoinRoom(data)

	case protocol.PlayerJoined:
		id, err := protocol.ParsePlayerID(data)
		if err != nil || int(id) >= len(s.activePlayers) {
			return
		}
		util.LogInfo("player %d joined", id)
		s.activePlayers[id] = true
		s.numPlayers++

	case protocol.PlayerDisconnect:
		id, err := protocol.ParsePlayerID(data)
		if err != nil || int(id) >= len(s.activePlayers) || !s.activePlayers[id] {
			return
		}
		util.LogInfo("player %d left", id)
		s.activePlayers[id] = false
		s.numPlayers--

	case protocol.StartGame:
		level, err := protocol.ParseStartGame(data)
		if err != nil {
			util.LogWarning("bad start game message: %v", err)
			return
		}
		s.status = GameStart
		s.maxPlayers = s.numPlayers
		s.levelNum = int(level)
		s.reconciler.Reset()
		s.conn.MarkStarted()

	case protocol.StateSync:
		if s.status != ReconnectPending {
			util.LogDebug("state snapshot during matchmaking but not reconnecting")
			return
		}
		if len(data) < 2 {
			return
		}
		level, _ := protocol.DecodeLevel(data[1])
		if int(level) == s.levelNum {
			util.LogInfo("reconnect success")
			s.status = GameStart
		} else {
			util.LogInfo("game level %d, local level %d; aborting reconnect", level, s.levelNum)
			s.status = ReconnectError
		}

	default:
		util.LogDebug("invalid message %d during matchmaking", data[0])
	}
}

// dispatchJoinRoom handles the host's seat assignment or denial.
func (s *Session) dispatchJoinRoom(data []byte) {
	msg, err := protocol.ParseJoinRoom(data)
	if err != nil {
		util.LogWarning("bad join room message: %v", err)
		return
	}

	switch msg.Status {
	case protocol.JoinOK:
		s.numPlayers = int(msg.NumPlayers)
		s.playerID = int(msg.PlayerID)
		if msg.APIVersion > protocol.APIVersion {
			util.LogWarning("api out of date; local is %d but host is %d",
				protocol.APIVersion, msg.APIVersion)
			s.status = ClientApiMismatch
			return
		}
		util.LogInfo("join room success; player %d of %d", s.playerID, s.numPlayers)
		for i := 0; i < s.numPlayers && i < len(s.activePlayers); i++ {
			s.activePlayers[i] = true
		}
		s.status = ClientWaitingOnOthers

	case protocol.JoinRoomInvalid:
		util.LogInfo("room does not exist")
		s.status = ClientRoomInvalid

	case protocol.JoinRoomFull:
		util.LogInfo("room full")
		s.status = ClientRoomFull

	case protocol.JoinReconnectPending, protocol.JoinReconnectDenied:
		if s.status != Reconnecting {
			util.LogError("reconnect response while not reconnecting")
			s.status = ClientRoomFull
			return
		}
		if msg.Status == protocol.JoinReconnectPending {
			s.status = ReconnectPending
		} else {
			s.status = ReconnectError
		}
	}
}

// ---------------------------------------------------------------------------
// Gameplay phase
// ---------------------------------------------------------------------------

func (s *Session) updateGameplay(state *game.ShipModel) {
	if s.conn == nil || state == nil {
		return
	}

	s.lastConnection++
	pid := s.playerID

	// Network tick: position out, and on the host a full state snapshot.
	s.currFrame = (s.currFrame + 1) % protocol.NetworkTick
	if s.currFrame == 0 {
		if pid >= 0 && pid < len(state.Donuts()) {
			donut := state.Donuts()[pid]
			s.sendData(protocol.PositionUpdate, donut.Angle, int16(pid), -1, -1, donut.Velocity)
		}

		if pid == 0 && !state.LevelOver() {
			s.conn.Broadcast(reconcile.Encode(state, uint8(s.levelNum), s.levelParity))
		}

		if s.lastConnection > ServerTimeout {
			util.LogWarning("no inbound message in %d frames; assuming disconnected", ServerTimeout)
			s.ForceDisconnect()
			return
		}
	}

	s.conn.Receive(func(data []byte) { s.dispatchGameplay(state, data) })
}

func (s *Session) dispatchGameplay(state *game.ShipModel, data []byte) {
	if len(data) == 0 {
		return
	}

	t := protocol.MessageType(data[0])
	if t > protocol.AssignedRoom {
		util.LogDebug("invalid matchmaking message %d during gameplay", data[0])
		return
	}

	s.lastConnection = 0

	switch t {
	case protocol.PlayerJoined:
		id, err := protocol.ParsePlayerID(data)
		if err != nil || int(id) >= len(s.activePlayers) {
			return
		}
		util.LogInfo("player %d has reconnected", id)
		s.numPlayers++
		s.activePlayers[id] = true
		if int(id) < len(state.Donuts()) {
			state.Donuts()[id].Active = true
		}
		return

	case protocol.PlayerDisconnect:
		id, err := protocol.ParsePlayerID(data)
		if err != nil || int(id) >= len(s.activePlayers) || !s.activePlayers[id] {
			return
		}
		util.LogInfo("player %d has disconnected", id)
		s.numPlayers--
		s.activePlayers[id] = false
		if int(id) < len(state.Donuts()) {
			state.Donuts()[id].Active = false
		}
		return

	case protocol.StateSync:
		if !state.LevelOver() {
			if !s.reconciler.Reconcile(state, data, uint8(s.levelNum), s.levelParity) {
				util.LogError("state snapshot irreconcilable; disconnecting")
				s.ForceDisconnect()
			}
		}
		return

	case protocol.ChangeGame:
		msg, err := protocol.ParseChangeGame(data)
		if err != nil {
			util.LogWarning("bad change game message: %v", err)
			return
		}
		if msg.Restart {
			s.startLevelInternal(uint8(s.levelNum), msg.Parity)
		} else {
			s.startLevelInternal(msg.Level, msg.Parity)
		}
		return
	}

	if state.LevelOver() {
		return
	}

	m, err := protocol.Decode(data)
	if err != nil {
		util.LogWarning("bad gameplay message: %v", err)
		return
	}

	switch t {
	case protocol.PositionUpdate:
		if d := donutAt(state, m.ID); d != nil {
			d.Angle = m.Angle
			d.Velocity = m.Data3
		}
	case protocol.Jump:
		if d := donutAt(state, m.ID); d != nil {
			d.StartJump()
		}
	case protocol.BreachCreate:
		state.CreateBreach(m.Angle, game.DefaultBreachHealth, int(m.Data1), int(m.ID))
		util.LogDebug("creating breach %d at angle %f with player %d", m.ID, m.Angle, m.Data1)
	case protocol.BreachShrink:
		state.ResolveBreach(int(m.ID))
	case protocol.DualCreate:
		state.CreateDoor(m.Angle, int(m.ID))
	case protocol.DualResolve:
		state.FlagDoor(int(m.ID), uint8(m.Data1), uint8(m.Data2))
	case protocol.ButtonCreate:
		state.CreateButton(m.Angle, int(m.ID), m.Data3, int(m.Data1))
	case protocol.ButtonFlag:
		state.FlagButton(int(m.ID))
	case protocol.ButtonResolve:
		state.ResolveButton(int(m.ID))
	case protocol.AllCreate:
		if int(m.ID) == s.playerID {
			state.CreateAllTask()
		}
	case protocol.AllFail:
		state.FailAllTask()
	case protocol.AllSucceed:
		state.StabilizerTutorial = true
	case protocol.ForceWin:
		state.SetTimeless(false)
		state.InitTimer(0)
	}
}

func donutAt(state *game.ShipModel, id int16) *game.Donut {
	if id < 0 || int(id) >= len(state.Donuts()) {
		return nil
	}
	return state.Donuts()[id]
}
