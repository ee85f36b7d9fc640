// Package transport moves gameplay bytes between the players of one room.
//
// The topology is a host-centered star: every client holds exactly one
// DataChannel to the host, and the host relays whatever a client sends to
// all other clients. Connections are negotiated through the rendezvous
// server (see internal/signaling); once a DataChannel opens, the client
// drops its rendezvous link while the host keeps its own open to receive
// future joiners.
//
// Inbound traffic is queued, not dispatched: pion delivers messages on its
// own goroutines, but the game consumes them from a single loop. Receive
// drains the queue synchronously on the caller's goroutine.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/signaling"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// originLocal marks a queued message that was synthesized locally rather
// than received from a peer. Receive never relays these.
const originLocal = -1

// inbound is one queued message with the relay slot it arrived from.
type inbound struct {
	origin int
	data   []byte
}

// peerLink is the host's view of one connected client.
type peerLink struct {
	slot     int
	playerID uint8
	rejoin   bool
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	open     bool
}

// Transport is one end of the room's star. Hosts fan out to every client;
// clients hold a single link to the host. Both roles share the queue-and-
// drain receive path.
type Transport struct {
	host       bool
	roomID     string
	apiVersion uint8

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	queue []inbound

	// Host side.
	ws      *signaling.Conn
	peers   map[int]*peerLink
	taken   [protocol.MaxPlayers]bool
	started bool

	// Client side.
	pc         *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	openSignal chan struct{}
}

// push appends a message to the inbound queue.
func (t *Transport) push(origin int, data []byte) {
	t.mu.Lock()
	t.queue = append(t.queue, inbound{origin: origin, data: data})
	t.mu.Unlock()
}

// Receive drains the inbound queue, invoking dispatch for each message in
// arrival order on the caller's goroutine. On the host, every message that
// arrived from a peer is first relayed to all other peers; this is what
// turns the star into a broadcast medium.
func (t *Transport) Receive(dispatch func(data []byte)) {
	t.mu.Lock()
	pending := t.queue
	t.queue = nil
	t.mu.Unlock()

	for _, in := range pending {
		if t.host && in.origin != originLocal {
			t.broadcastExcept(in.origin, in.data)
		}
		dispatch(in.data)
	}
}

// Broadcast delivers a message to every other player in the room. The host
// fans out to all connected clients; a client sends to the host, which
// relays onward.
func (t *Transport) Broadcast(data []byte) {
	if t.host {
		t.broadcastExcept(originLocal, data)
		return
	}
	t.sendClient(data)
}

func (t *Transport) sendClient(data []byte) {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return
	}
	if err := dc.Send(data); err != nil {
		util.LogError("failed to send to host: %v", err)
		return
	}
	util.Stats.AddSent(len(data))
}

// broadcastExcept sends to every open peer link except the given slot.
// Pass originLocal to reach everyone.
func (t *Transport) broadcastExcept(exceptSlot int, data []byte) {
	t.mu.Lock()
	var targets []*webrtc.DataChannel
	for slot, link := range t.peers {
		if slot == exceptSlot || !link.open {
			continue
		}
		targets = append(targets, link.dc)
	}
	t.mu.Unlock()

	for _, dc := range targets {
		if err := dc.Send(data); err != nil {
			util.LogError("failed to relay to peer: %v", err)
			continue
		}
		util.Stats.AddSent(len(data))
	}
}

// RoomID returns the room code assigned by the rendezvous server. Empty on
// clients until connected (clients learn it from the join flow caller).
func (t *Transport) RoomID() string {
	return t.roomID
}

// IsHost reports whether this end owns the room.
func (t *Transport) IsHost() bool {
	return t.host
}

// MarkStarted tells the host transport the match has begun. Fresh joins are
// denied from here on; only rejoins of known players are admitted.
func (t *Transport) MarkStarted() {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
}

// Ready returns a channel closed once the client's DataChannel is open. The
// host is ready as soon as StartHost returns.
func (t *Transport) Ready() <-chan struct{} {
	return t.openSignal
}

// Close tears down every connection owned by the transport.
func (t *Transport) Close() error {
	t.cancel()

	var errs []error
	t.mu.Lock()
	peers := t.peers
	t.peers = nil
	pc, dc := t.pc, t.dc
	t.pc, t.dc = nil, nil
	ws := t.ws
	t.ws = nil
	t.mu.Unlock()

	for _, link := range peers {
		errs = append(errs, link.dc.Close(), link.pc.Close())
	}
	if dc != nil {
		errs = append(errs, dc.Close())
	}
	if pc != nil {
		errs = append(errs, pc.Close())
	}
	if ws != nil {
		errs = append(errs, ws.Close())
	}
	return errors.Join(errs...)
}
