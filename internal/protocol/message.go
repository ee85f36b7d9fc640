// Package protocol defines the wire format shared by every peer in a game
// session: the closed set of message types, the fixed-layout gameplay
// message, and the short fixed-point float encoding used throughout.
package protocol

// MessageType is the 1-byte tag at the start of every wire message.
//
// The value space is partitioned: gameplay messages are 0–49, connection
// lifecycle messages are 50–99, and matchmaking-only messages are 100+.
type MessageType uint8

// Gameplay messages (0–49). All of these use the fixed 9-byte layout
// except StateSync, whose payload is the full state snapshot.
const (
	PositionUpdate MessageType = iota
	Jump
	BreachCreate
	BreachShrink
	DualCreate
	DualResolve
	ButtonCreate
	ButtonFlag
	ButtonResolve
	AllCreate
	AllFail
	AllSucceed
	ForceWin
	StateSync
)

// Connection lifecycle messages (50–99).
const (
	PlayerJoined MessageType = iota + 50
	PlayerDisconnect
	StartGame
	ChangeGame
)

// Matchmaking-only messages (100+). These never appear once a game has
// started.
const (
	AssignedRoom MessageType = iota + 100
	JoinRoom
	ApiMismatch
	GenericError
)

// Gameplay returns true for message types in the gameplay partition.
func (t MessageType) Gameplay() bool { return t < 50 }

// Lifecycle returns true for connection lifecycle message types.
func (t MessageType) Lifecycle() bool { return t >= 50 && t < 100 }

// Matchmaking returns true for matchmaking-only message types.
func (t MessageType) Matchmaking() bool { return t >= 100 }

// Network-wide constants. These are part of the wire contract: peers with
// different values cannot interoperate.
const (
	// MaxPlayers is the maximum number of players per game, including the host.
	MaxPlayers = 6

	// MinPlayers is the minimum number of players per game.
	MinPlayers = 2

	// RoomLength is the number of characters in a room ID.
	RoomLength = 5

	// APIVersion must be bumped on every backwards-incompatible wire change.
	// Peers with mismatched versions are prevented from connecting.
	APIVersion = 0

	// NetworkTick is the number of game ticks between outbound position
	// updates and (host only) full state snapshots. Matches the animation
	// tick granularity used by the rest of the game.
	NetworkTick = 12
)

// Join statuses carried in the second byte of a JoinRoom message.
const (
	JoinOK               uint8 = 0
	JoinRoomInvalid      uint8 = 1
	JoinRoomFull         uint8 = 2
	JoinReconnectPending uint8 = 3
	JoinReconnectDenied  uint8 = 4
)
