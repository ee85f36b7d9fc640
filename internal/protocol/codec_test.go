package protocol_test

import (
	"testing"

	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
)

// TestFloatRoundTrip verifies the fixed-point float codec stays within its
// documented resolution.
func TestFloatRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		in   float32
		want float32
	}{
		{name: "zero", in: 0, want: 0},
		{name: "resolution step", in: 0.1, want: 0.1},
		{name: "typical angle", in: 101.3, want: 101.3},
		{name: "max representable", in: 6553.5, want: 6553.5},
		{name: "negative clamps to zero", in: -5, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := protocol.AppendFloat(nil, tc.in)
			if len(buf) != 2 {
				t.Fatalf("AppendFloat wrote %d bytes, want 2", len(buf))
			}
			got := protocol.DecodeFloat(buf[0], buf[1])
			if diff := got - tc.want; diff > protocol.FloatEpsilon || diff < -protocol.FloatEpsilon {
				t.Errorf("round trip of %v: got %v", tc.in, got)
			}
		})
	}
}

// TestLevelByte verifies the packed level/parity byte.
func TestLevelByte(t *testing.T) {
	testCases := []struct {
		name   string
		level  uint8
		parity bool
	}{
		{name: "level 0 parity true", level: 0, parity: true},
		{name: "level 0 parity false", level: 0, parity: false},
		{name: "level 5 parity true", level: 5, parity: true},
		{name: "level 5 parity false", level: 5, parity: false},
		{name: "max level", level: 127, parity: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := protocol.EncodeLevel(tc.level, tc.parity)
			level, parity := protocol.DecodeLevel(b)
			if level != tc.level || parity != tc.parity {
				t.Errorf("got level %d parity %t, want %d %t", level, parity, tc.level, tc.parity)
			}
		})
	}

	if protocol.EncodeLevel(5, false) != 5|0x80 {
		t.Errorf("parity false must set the top bit")
	}
}

// TestEncodeDecodeRoundTrip verifies the fixed gameplay layout for
// representative messages, including sentinel fields.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		msg  protocol.Message
	}{
		{
			name: "position update",
			msg: protocol.Message{
				Type: protocol.PositionUpdate, Angle: 182.4, ID: 3,
				Data1: -1, Data2: -1, Data3: 2.5,
			},
		},
		{
			name: "position update negative velocity",
			msg: protocol.Message{
				Type: protocol.PositionUpdate, Angle: 10, ID: 0,
				Data1: -1, Data2: -1, Data3: -3.2,
			},
		},
		{
			name: "breach create",
			msg: protocol.Message{
				Type: protocol.BreachCreate, Angle: 45.5, ID: 7,
				Data1: 2, Data2: -1, Data3: -1,
			},
		},
		{
			name: "button create carries second angle",
			msg: protocol.Message{
				Type: protocol.ButtonCreate, Angle: 30, ID: 1,
				Data1: 4, Data2: -1, Data3: 210.7,
			},
		},
		{
			name: "jump is all sentinels but id",
			msg: protocol.Message{
				Type: protocol.Jump, Angle: -1, ID: 5,
				Data1: -1, Data2: -1, Data3: -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := protocol.Encode(tc.msg)
			if len(encoded) != protocol.MessageSize {
				t.Fatalf("encoded %d bytes, want %d", len(encoded), protocol.MessageSize)
			}

			decoded, err := protocol.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if decoded.Type != tc.msg.Type {
				t.Errorf("Type: got %d, want %d", decoded.Type, tc.msg.Type)
			}
			checkFloat(t, "Angle", decoded.Angle, tc.msg.Angle)
			if decoded.ID != tc.msg.ID {
				t.Errorf("ID: got %d, want %d", decoded.ID, tc.msg.ID)
			}
			if decoded.Data1 != tc.msg.Data1 {
				t.Errorf("Data1: got %d, want %d", decoded.Data1, tc.msg.Data1)
			}
			if decoded.Data2 != tc.msg.Data2 {
				t.Errorf("Data2: got %d, want %d", decoded.Data2, tc.msg.Data2)
			}
			checkFloat(t, "Data3", decoded.Data3, tc.msg.Data3)
		})
	}
}

// checkFloat compares a decoded fixed-point field against the original.
// Negative angles come back as the exact sentinel; Data3 round trips sign.
func checkFloat(t *testing.T, field string, got, want float32) {
	t.Helper()
	if want < 0 && field == "Angle" {
		if got != protocol.Sentinel {
			t.Errorf("%s: got %v, want sentinel", field, got)
		}
		return
	}
	if diff := got - want; diff > protocol.FloatEpsilon || diff < -protocol.FloatEpsilon {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	for size := 0; size < protocol.MessageSize; size++ {
		if _, err := protocol.Decode(make([]byte, size)); err == nil {
			t.Errorf("Decode accepted %d bytes", size)
		}
	}
}

// TestLifecycleMessages verifies the short irregular builders and parsers.
func TestLifecycleMessages(t *testing.T) {
	t.Run("player joined", func(t *testing.T) {
		id, err := protocol.ParsePlayerID(protocol.NewPlayerJoined(4))
		if err != nil || id != 4 {
			t.Errorf("got %d, %v", id, err)
		}
	})

	t.Run("player disconnect", func(t *testing.T) {
		id, err := protocol.ParsePlayerID(protocol.NewPlayerDisconnect(2))
		if err != nil || id != 2 {
			t.Errorf("got %d, %v", id, err)
		}
	})

	t.Run("start game", func(t *testing.T) {
		level, err := protocol.ParseStartGame(protocol.NewStartGame(9))
		if err != nil || level != 9 {
			t.Errorf("got %d, %v", level, err)
		}
	})

	t.Run("restart", func(t *testing.T) {
		msg, err := protocol.ParseChangeGame(protocol.NewRestartGame(true))
		if err != nil {
			t.Fatalf("ParseChangeGame failed: %v", err)
		}
		if !msg.Restart || !msg.Parity {
			t.Errorf("got %+v, want restart with parity", msg)
		}
	})

	t.Run("next level", func(t *testing.T) {
		msg, err := protocol.ParseChangeGame(protocol.NewNextLevel(7, false))
		if err != nil {
			t.Fatalf("ParseChangeGame failed: %v", err)
		}
		if msg.Restart || msg.Level != 7 || msg.Parity {
			t.Errorf("got %+v, want level 7 parity false", msg)
		}
	})

	t.Run("assigned room", func(t *testing.T) {
		roomID, err := protocol.ParseAssignedRoom(protocol.NewAssignedRoom("ABCDE"))
		if err != nil || roomID != "ABCDE" {
			t.Errorf("got %q, %v", roomID, err)
		}
	})

	t.Run("join room", func(t *testing.T) {
		msg, err := protocol.ParseJoinRoom(protocol.NewJoinRoom(protocol.JoinOK, 3, 2, 1))
		if err != nil {
			t.Fatalf("ParseJoinRoom failed: %v", err)
		}
		if msg.Status != protocol.JoinOK || msg.NumPlayers != 3 || msg.PlayerID != 2 || msg.APIVersion != 1 {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("short buffers rejected", func(t *testing.T) {
		if _, err := protocol.ParsePlayerID([]byte{byte(protocol.PlayerJoined)}); err == nil {
			t.Error("ParsePlayerID accepted 1 byte")
		}
		if _, err := protocol.ParseAssignedRoom([]byte{byte(protocol.AssignedRoom), 'A'}); err == nil {
			t.Error("ParseAssignedRoom accepted short room")
		}
		if _, err := protocol.ParseJoinRoom([]byte{byte(protocol.JoinRoom), 0}); err == nil {
			t.Error("ParseJoinRoom accepted 2 bytes")
		}
		if _, err := protocol.ParseChangeGame([]byte{byte(protocol.ChangeGame), 1}); err == nil {
			t.Error("ParseChangeGame accepted truncated next-level")
		}
	})
}

// TestTypePartitions pins the partition predicates to the wire values.
func TestTypePartitions(t *testing.T) {
	if !protocol.PositionUpdate.Gameplay() || !protocol.StateSync.Gameplay() {
		t.Error("gameplay types misclassified")
	}
	if !protocol.PlayerJoined.Lifecycle() || !protocol.ChangeGame.Lifecycle() {
		t.Error("lifecycle types misclassified")
	}
	if !protocol.AssignedRoom.Matchmaking() || !protocol.GenericError.Matchmaking() {
		t.Error("matchmaking types misclassified")
	}
	if protocol.StateSync.Matchmaking() || protocol.JoinRoom.Gameplay() {
		t.Error("partition overlap")
	}
}
