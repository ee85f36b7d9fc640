package signaling_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/onewordstudios/sweetspace-sub002/internal/signaling"
)

// startServer runs a rendezvous server on an ephemeral port and returns its
// WebSocket URL.
func startServer(t *testing.T) string {
	t.Helper()
	reg := prometheus.NewRegistry()
	server := signaling.NewServer(zap.NewNop().Sugar(), signaling.NewMetrics(reg))
	ts := httptest.NewServer(server.Router(reg))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// registerHost registers a room and returns the host connection and room code.
func registerHost(t *testing.T, url string, apiVersion, maxPlayers uint8) (*signaling.Conn, string) {
	t.Helper()
	conn, err := signaling.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("host dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Send(signaling.Message{
		Type:       signaling.MsgHost,
		APIVersion: apiVersion,
		MaxPlayers: maxPlayers,
	})
	if err != nil {
		t.Fatalf("host registration failed: %v", err)
	}

	reply, err := conn.Read()
	if err != nil {
		t.Fatalf("reading room assignment failed: %v", err)
	}
	if reply.Type != signaling.MsgAssigned {
		t.Fatalf("got %q, want assigned", reply.Type)
	}
	return conn, reply.Room
}

// join dials a client and sends a join request, returning the connection and
// the server's reply.
func join(t *testing.T, url, room string, apiVersion uint8) (*signaling.Conn, signaling.Message) {
	t.Helper()
	conn, err := signaling.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Send(signaling.Message{
		Type:       signaling.MsgJoin,
		Room:       room,
		APIVersion: apiVersion,
	})
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}

	reply, err := conn.Read()
	if err != nil {
		t.Fatalf("reading join reply failed: %v", err)
	}
	return conn, reply
}

func TestHostRegistration(t *testing.T) {
	url := startServer(t)
	_, room := registerHost(t, url, 0, 6)

	if len(room) != 5 {
		t.Fatalf("room code %q, want 5 characters", room)
	}
	for _, c := range room {
		if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", c) {
			t.Errorf("room code %q contains %q", room, c)
		}
	}
}

func TestJoinUnknownRoomDenied(t *testing.T) {
	url := startServer(t)
	_, reply := join(t, url, "ZZZZZ", 0)

	if reply.Type != signaling.MsgDeny || reply.Reason != signaling.ReasonRoomInvalid {
		t.Errorf("got %q/%q, want deny room-invalid", reply.Type, reply.Reason)
	}
}

func TestJoinAPIMismatchDenied(t *testing.T) {
	url := startServer(t)
	_, room := registerHost(t, url, 0, 6)

	_, reply := join(t, url, room, 1)
	if reply.Type != signaling.MsgDeny || reply.Reason != signaling.ReasonAPIMismatch {
		t.Errorf("got %q/%q, want deny api-mismatch", reply.Type, reply.Reason)
	}
}

func TestJoinAdmitAndRelay(t *testing.T) {
	url := startServer(t)
	host, room := registerHost(t, url, 0, 6)

	client, reply := join(t, url, room, 0)
	if reply.Type != signaling.MsgAdmit {
		t.Fatalf("got %q, want admit", reply.Type)
	}
	slot := reply.Slot

	// The host hears the join first, addressed by the same slot.
	fwd, err := host.Read()
	if err != nil || fwd.Type != signaling.MsgJoin || fwd.Slot != slot {
		t.Fatalf("host got %+v (%v), want join for slot %d", fwd, err, slot)
	}

	// Client offer reaches the host with the slot stamped on.
	if err := client.Send(signaling.Message{Type: signaling.MsgOffer, SDP: "offer-sdp"}); err != nil {
		t.Fatal(err)
	}
	offer, err := host.Read()
	if err != nil || offer.Type != signaling.MsgOffer || offer.Slot != slot || offer.SDP != "offer-sdp" {
		t.Fatalf("host got %+v (%v), want relayed offer", offer, err)
	}

	// Host answer comes back down to the right client.
	if err := host.Send(signaling.Message{Type: signaling.MsgAnswer, Slot: slot, SDP: "answer-sdp"}); err != nil {
		t.Fatal(err)
	}
	answer, err := client.Read()
	if err != nil || answer.Type != signaling.MsgAnswer || answer.SDP != "answer-sdp" {
		t.Fatalf("client got %+v (%v), want relayed answer", answer, err)
	}

	// Candidates flow both ways.
	if err := client.Send(signaling.Message{Type: signaling.MsgCandidate, Candidate: "{}"}); err != nil {
		t.Fatal(err)
	}
	cand, err := host.Read()
	if err != nil || cand.Type != signaling.MsgCandidate || cand.Slot != slot {
		t.Fatalf("host got %+v (%v), want relayed candidate", cand, err)
	}
}

func TestRejoinForwardsPlayerID(t *testing.T) {
	url := startServer(t)
	host, room := registerHost(t, url, 0, 6)

	conn, err := signaling.Dial(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Send(signaling.Message{Type: signaling.MsgRejoin, Room: room, PlayerID: 3})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := conn.Read()
	if err != nil || reply.Type != signaling.MsgAdmit {
		t.Fatalf("got %+v (%v), want admit", reply, err)
	}

	fwd, err := host.Read()
	if err != nil || fwd.Type != signaling.MsgRejoin || fwd.PlayerID != 3 || fwd.Slot != reply.Slot {
		t.Fatalf("host got %+v (%v), want rejoin for player 3", fwd, err)
	}
}

func TestRoomFullDenied(t *testing.T) {
	url := startServer(t)
	host, room := registerHost(t, url, 0, 2)

	_, reply := join(t, url, room, 0)
	if reply.Type != signaling.MsgAdmit {
		t.Fatalf("first join got %q, want admit", reply.Type)
	}
	if _, err := host.Read(); err != nil {
		t.Fatal(err)
	}

	_, reply = join(t, url, room, 0)
	if reply.Type != signaling.MsgDeny || reply.Reason != signaling.ReasonRoomFull {
		t.Errorf("second join got %q/%q, want deny room-full", reply.Type, reply.Reason)
	}
}

func TestPeerLeftFreesSeat(t *testing.T) {
	url := startServer(t)
	host, room := registerHost(t, url, 0, 2)

	_, reply := join(t, url, room, 0)
	if reply.Type != signaling.MsgAdmit {
		t.Fatalf("first join got %q, want admit", reply.Type)
	}
	slot := reply.Slot
	if _, err := host.Read(); err != nil {
		t.Fatal(err)
	}

	if err := host.Send(signaling.Message{Type: signaling.MsgPeerLeft, Slot: slot}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	_, reply = join(t, url, room, 0)
	if reply.Type != signaling.MsgAdmit {
		t.Errorf("join after seat release got %q/%q, want admit", reply.Type, reply.Reason)
	}
}

func TestHostLeavingClosesRoom(t *testing.T) {
	url := startServer(t)
	host, room := registerHost(t, url, 0, 6)

	client, reply := join(t, url, room, 0)
	if reply.Type != signaling.MsgAdmit {
		t.Fatalf("got %q, want admit", reply.Type)
	}
	if _, err := host.Read(); err != nil {
		t.Fatal(err)
	}

	_ = host.Close()

	// The pending client is turned away as the room dissolves.
	deny, err := client.Read()
	if err == nil && (deny.Type != signaling.MsgDeny || deny.Reason != signaling.ReasonRoomInvalid) {
		t.Errorf("client got %+v, want deny room-invalid or close", deny)
	}

	time.Sleep(100 * time.Millisecond)
	_, reply = join(t, url, room, 0)
	if reply.Type != signaling.MsgDeny || reply.Reason != signaling.ReasonRoomInvalid {
		t.Errorf("join after room closed got %q/%q, want deny room-invalid", reply.Type, reply.Reason)
	}
}
