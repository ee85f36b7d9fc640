// Package session is the top-level network controller for one player. It
// owns the matchmaking state machine, translates gameplay actions into wire
// messages, dispatches inbound traffic into the ship model, and keeps
// clients reconciled against the host's authoritative snapshots.
//
// A Session is driven by the game loop: call Update once per frame. It is
// not safe for concurrent use.
package session

import (
	"context"
	"time"

	"github.com/onewordstudios/sweetspace-sub002/internal/config"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/reconcile"
	"github.com/onewordstudios/sweetspace-sub002/internal/transport"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// Conn is the transport surface the session needs: fire-and-forget
// broadcast out, synchronous queue drain in.
type Conn interface {
	// Broadcast sends to every other player in the room.
	Broadcast(data []byte)
	// Receive drains queued inbound messages into dispatch, in order, on
	// the caller's goroutine.
	Receive(dispatch func(data []byte))
	// MarkStarted closes the room to fresh joiners.
	MarkStarted()
	Close() error
}

// Status is the matchmaking state of the session.
type Status int

const (
	// Uninitialized means no connection has been attempted yet.
	Uninitialized Status = iota
	// HostConnecting means the host is waiting for its room assignment.
	HostConnecting
	// HostWaitingOnOthers means the room is open and the host is waiting
	// for players.
	HostWaitingOnOthers
	// HostApiMismatch means the host's wire version is unusable.
	HostApiMismatch
	// HostError is a generic host-side matchmaking failure.
	HostError
	// ClientConnecting means the client is negotiating with the host.
	ClientConnecting
	// ClientWaitingOnOthers means the client is seated and waiting for the
	// game to start.
	ClientWaitingOnOthers
	// ClientRoomInvalid means the room code did not match an open room.
	ClientRoomInvalid
	// ClientRoomFull means the room has no free seats.
	ClientRoomFull
	// ClientApiMismatch means the client's wire version differs from the host's.
	ClientApiMismatch
	// ClientError is a generic client-side matchmaking failure.
	ClientError
	// Reconnecting means a dropped player is negotiating back into the room.
	Reconnecting
	// ReconnectPending means the host re-admitted us and we are waiting for
	// a state snapshot to confirm the level still matches.
	ReconnectPending
	// ReconnectError means the reconnect attempt failed.
	ReconnectError
	// GameStart means gameplay is in progress.
	GameStart
	// GameEnded means the campaign is over but the connection is still up.
	GameEnded
	// Disconnected means the connection was lost after being established.
	Disconnected
)

// NetworkEvent is a major unacknowledged event the game loop must act on.
type NetworkEvent int

const (
	// EventNone means nothing is pending.
	EventNone NetworkEvent = iota
	// EventLoadLevel means a new level must be loaded; see LevelNum.
	EventLoadLevel
	// EventEndGame means the campaign is over.
	EventEndGame
)

const (
	// ServerTimeout is how many frames without an inbound message before
	// the session assumes the connection is dead.
	ServerTimeout = 300

	// minReconnectWait throttles connection attempts.
	minReconnectWait = 500 * time.Millisecond
)

// unassigned marks playerID and levelNum before their values are known.
const unassigned = -1

// Session is the network controller for one player.
type Session struct {
	cfg  config.Config
	conn Conn

	status Status
	events NetworkEvent

	playerID int
	roomID   string

	levelNum    int
	levelParity bool

	skipTutorial bool

	numPlayers    int
	maxPlayers    int
	activePlayers [protocol.MaxPlayers]bool

	reconciler *reconcile.Reconciler

	currFrame      int
	lastConnection int
	lastAttempt    time.Time

	// Dial points, swappable in tests.
	dialHost   func(ctx context.Context, cfg config.Config) (Conn, error)
	dialClient func(ctx context.Context, cfg config.Config, roomID string) (Conn, error)
	dialRejoin func(ctx context.Context, cfg config.Config, roomID string, playerID uint8) (Conn, error)
}

// New creates an uninitialized session. Call HostGame or JoinGame to connect.
func New(cfg config.Config) *Session {
	return &Session{
		cfg:         cfg,
		status:      Uninitialized,
		events:      EventNone,
		playerID:    unassigned,
		levelNum:    unassigned,
		levelParity: true,
		reconciler:  reconcile.New(),
		dialHost: func(ctx context.Context, cfg config.Config) (Conn, error) {
			t, err := transport.StartHost(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		dialClient: func(ctx context.Context, cfg config.Config, roomID string) (Conn, error) {
			t, err := transport.StartClient(ctx, cfg, roomID)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		dialRejoin: func(ctx context.Context, cfg config.Config, roomID string, playerID uint8) (Conn, error) {
			t, err := transport.StartRejoin(ctx, cfg, roomID, playerID)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// initConnection gates a new connection attempt: only terminal states may
// retry, and not faster than minReconnectWait.
func (s *Session) initConnection() bool {
	switch s.status {
	case Uninitialized, Disconnected, HostError, ClientRoomInvalid,
		ClientRoomFull, ClientApiMismatch, ClientError, ReconnectError:
	default:
		util.LogError("session already initialized (status %d)", s.status)
		return false
	}

	if time.Since(s.lastAttempt) < minReconnectWait {
		util.LogDebug("connection attempt too fast; aborting")
		return false
	}
	s.lastAttempt = time.Now()

	s.reconciler.Reset()
	s.skipTutorial = false
	return true
}

// HostGame opens a new room. On success the session is HostConnecting until
// the room assignment arrives through Update.
func (s *Session) HostGame(ctx context.Context) bool {
	if !s.initConnection() {
		s.status = HostError
		return false
	}

	conn, err := s.dialHost(ctx, s.cfg)
	if err != nil {
		util.LogError("failed to host game: %v", err)
		s.status = HostError
		return false
	}

	s.conn = conn
	s.playerID = 0
	s.numPlayers = 1
	s.status = HostConnecting
	return true
}

// JoinGame connects to an existing room. On success the session is
// ClientConnecting until the seat assignment arrives through Update.
func (s *Session) JoinGame(ctx context.Context, roomID string) bool {
	if !s.initConnection() {
		s.status = ClientError
		return false
	}

	conn, err := s.dialClient(ctx, s.cfg, roomID)
	if err != nil {
		util.LogError("failed to join game: %v", err)
		s.status = ClientError
		return false
	}

	s.conn = conn
	s.roomID = roomID
	s.status = ClientConnecting
	return true
}

// Reconnect attempts to reclaim the previous seat after a disconnect. Valid
// only when a player ID and room are cached from the earlier connection.
func (s *Session) Reconnect(ctx context.Context) bool {
	if !s.initConnection() || s.playerID == unassigned || s.roomID == "" {
		s.status = ReconnectError
		return false
	}

	conn, err := s.dialRejoin(ctx, s.cfg, s.roomID, uint8(s.playerID))
	if err != nil {
		util.LogError("failed to reconnect: %v", err)
		s.status = ReconnectError
		return false
	}

	s.conn = conn
	s.status = Reconnecting
	return true
}

// ---------------------------------------------------------------------------
// Getters
// ---------------------------------------------------------------------------

// Status returns the current matchmaking status.
func (s *Session) Status() Status { return s.status }

// LastNetworkEvent returns the pending network event, if any.
func (s *Session) LastNetworkEvent() NetworkEvent { return s.events }

// AcknowledgeNetworkEvent clears the pending network event.
func (s *Session) AcknowledgeNetworkEvent() { s.events = EventNone }

// RoomID returns the room code, or "" before assignment.
func (s *Session) RoomID() string { return s.roomID }

// LevelNum returns the current level, or -1 before the game starts.
func (s *Session) LevelNum() int { return s.levelNum }

// PlayerID returns this player's ID, or -1 before assignment.
func (s *Session) PlayerID() int { return s.playerID }

// NumPlayers returns the number of currently connected players.
func (s *Session) NumPlayers() int { return s.numPlayers }

// MaxNumPlayers returns the player count locked in at game start.
func (s *Session) MaxNumPlayers() int { return s.maxPlayers }

// IsPlayerActive reports whether the given player is currently connected.
func (s *Session) IsPlayerActive(playerID int) bool {
	if playerID < 0 || playerID >= len(s.activePlayers) {
		return false
	}
	return s.activePlayers[playerID]
}

// SetSkipTutorial controls whether tutorial levels are skipped when
// starting or advancing levels.
func (s *Session) SetSkipTutorial(skip bool) { s.skipTutorial = skip }

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// ForceDisconnect drops the connection immediately. The cached player ID and
// room code survive so Reconnect can reclaim the seat.
func (s *Session) ForceDisconnect() {
	util.LogInfo("force disconnecting")
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.status = Disconnected
	s.lastConnection = 0
}

// Reset returns the session to its initial state; used when leaving a game.
func (s *Session) Reset() {
	s.ForceDisconnect()
	s.status = Uninitialized
	s.activePlayers = [protocol.MaxPlayers]bool{}
	s.reconciler.Reset()
	s.roomID = ""
	s.playerID = unassigned
	s.levelNum = unassigned
}
