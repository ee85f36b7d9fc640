package protocol

import "fmt"

// MessageSize is the fixed size of an encoded gameplay message:
// Type(1) + Angle(2) + ID(1) + Data1(1) + Data2(1) + Data3 sign(1) + Data3(2).
const MessageSize = 9

// Sentinel fills any field a message type does not use.
const Sentinel = -1

// Message is a gameplay message in the canonical fixed layout. Angle is a
// fixed-point float; ID, Data1 and Data2 are single bytes on the wire; Data3
// is a signed fixed-point float. Unused fields hold Sentinel.
type Message struct {
	Type  MessageType
	Angle float32
	ID    int16
	Data1 int16
	Data2 int16
	Data3 float32
}

// byte fields use 0xFF as the on-wire sentinel; no legitimate entity or
// player ID reaches 255.
const byteSentinel = 0xFF

func encodeByteField(v int16) byte {
	if v < 0 {
		return byteSentinel
	}
	return byte(v)
}

func decodeByteField(b byte) int16 {
	if b == byteSentinel {
		return Sentinel
	}
	return int16(b)
}

// Encode serializes the message into a fresh MessageSize-byte slice.
func Encode(m Message) []byte {
	buf := make([]byte, 0, MessageSize)
	buf = append(buf, byte(m.Type))

	if m.Angle < 0 {
		buf = append(buf, byteSentinel, byteSentinel)
	} else {
		buf = AppendFloat(buf, m.Angle)
	}

	buf = append(buf, encodeByteField(m.ID), encodeByteField(m.Data1), encodeByteField(m.Data2))

	d3 := m.Data3
	if d3 >= 0 {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
		d3 = -d3
	}
	buf = AppendFloat(buf, d3)
	return buf
}

// Decode deserializes a fixed-layout gameplay message with bounds checks.
func Decode(data []byte) (Message, error) {
	if len(data) < MessageSize {
		return Message{}, fmt.Errorf("message too short: %d bytes (need %d)", len(data), MessageSize)
	}

	m := Message{Type: MessageType(data[0])}

	if data[1] == byteSentinel && data[2] == byteSentinel {
		m.Angle = Sentinel
	} else {
		m.Angle = DecodeFloat(data[1], data[2])
	}

	m.ID = decodeByteField(data[3])
	m.Data1 = decodeByteField(data[4])
	m.Data2 = decodeByteField(data[5])

	m.Data3 = DecodeFloat(data[7], data[8])
	if data[6] == 0 {
		m.Data3 = -m.Data3
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Lifecycle and matchmaking messages
// ---------------------------------------------------------------------------

// These messages are short and irregular, so each gets an explicit builder
// and a bounds-checked parser rather than the fixed layout above.

// NewPlayerJoined builds a PlayerJoined message for the given player ID.
func NewPlayerJoined(playerID uint8) []byte {
	return []byte{byte(PlayerJoined), playerID}
}

// NewPlayerDisconnect builds a PlayerDisconnect message for the given player ID.
func NewPlayerDisconnect(playerID uint8) []byte {
	return []byte{byte(PlayerDisconnect), playerID}
}

// ParsePlayerID extracts the player ID from a PlayerJoined or
// PlayerDisconnect message.
func ParsePlayerID(data []byte) (uint8, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("player message too short: %d bytes", len(data))
	}
	return data[1], nil
}

// NewStartGame builds a StartGame message carrying the starting level.
func NewStartGame(level uint8) []byte {
	return []byte{byte(StartGame), level}
}

// ParseStartGame extracts the level number from a StartGame message.
func ParseStartGame(data []byte) (uint8, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("start game message too short: %d bytes", len(data))
	}
	return data[1], nil
}

// NewRestartGame builds a ChangeGame message that replays the current level
// with the given parity.
func NewRestartGame(parity bool) []byte {
	p := byte(0)
	if parity {
		p = 1
	}
	return []byte{byte(ChangeGame), 0, p}
}

// NewNextLevel builds a ChangeGame message that advances to the given level
// with the given parity.
func NewNextLevel(level uint8, parity bool) []byte {
	p := byte(0)
	if parity {
		p = 1
	}
	return []byte{byte(ChangeGame), 1, level, p}
}

// ChangeGameMsg is a decoded ChangeGame message. Restart replays the current
// level; otherwise Level is the next level to load.
type ChangeGameMsg struct {
	Restart bool
	Level   uint8
	Parity  bool
}

// ParseChangeGame decodes a ChangeGame message.
func ParseChangeGame(data []byte) (ChangeGameMsg, error) {
	if len(data) < 3 {
		return ChangeGameMsg{}, fmt.Errorf("change game message too short: %d bytes", len(data))
	}
	if data[1] == 0 {
		return ChangeGameMsg{Restart: true, Parity: data[2] != 0}, nil
	}
	if len(data) < 4 {
		return ChangeGameMsg{}, fmt.Errorf("change game message too short: %d bytes", len(data))
	}
	return ChangeGameMsg{Level: data[2], Parity: data[3] != 0}, nil
}

// NewAssignedRoom builds an AssignedRoom message carrying the room ID.
func NewAssignedRoom(roomID string) []byte {
	buf := make([]byte, 0, 1+RoomLength)
	buf = append(buf, byte(AssignedRoom))
	return append(buf, roomID[:RoomLength]...)
}

// ParseAssignedRoom extracts the room ID from an AssignedRoom message.
func ParseAssignedRoom(data []byte) (string, error) {
	if len(data) < 1+RoomLength {
		return "", fmt.Errorf("assigned room message too short: %d bytes", len(data))
	}
	return string(data[1 : 1+RoomLength]), nil
}

// NewJoinRoom builds a JoinRoom message. For JoinOK the remaining fields are
// the current player count, the assigned player ID, and the host's API
// version; for every other status they are ignored by receivers but kept in
// the layout so the message length is constant.
func NewJoinRoom(status, numPlayers, playerID, apiVersion uint8) []byte {
	return []byte{byte(JoinRoom), status, numPlayers, playerID, apiVersion}
}

// JoinRoomMsg is a decoded JoinRoom message.
type JoinRoomMsg struct {
	Status     uint8
	NumPlayers uint8
	PlayerID   uint8
	APIVersion uint8
}

// ParseJoinRoom decodes a JoinRoom message.
func ParseJoinRoom(data []byte) (JoinRoomMsg, error) {
	if len(data) < 5 {
		return JoinRoomMsg{}, fmt.Errorf("join room message too short: %d bytes", len(data))
	}
	return JoinRoomMsg{
		Status:     data[1],
		NumPlayers: data[2],
		PlayerID:   data[3],
		APIVersion: data[4],
	}, nil
}

// NewApiMismatch builds an ApiMismatch message.
func NewApiMismatch() []byte { return []byte{byte(ApiMismatch)} }

// NewGenericError builds a GenericError message.
func NewGenericError() []byte { return []byte{byte(GenericError)} }
