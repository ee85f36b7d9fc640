package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/onewordstudios/sweetspace-sub002/internal/config"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/signaling"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// connectTimeout bounds the whole client negotiation: admission, SDP
// exchange and ICE punchthrough. Past it the attempt is reported as a
// generic error.
const connectTimeout = 15 * time.Second

// StartClient joins an existing room. Lifecycle:
//
//  1. Dial the rendezvous server and ask to join the room.
//  2. An immediate denial (bad room, full, API mismatch) is queued as the
//     matching wire message; the session reads it like any other inbound
//     and no peer connection is ever attempted.
//  3. On admission, offer/answer/ICE are exchanged through the server until
//     the DataChannel to the host opens, then the rendezvous link is
//     dropped. The host's JoinRoom assignment arrives over the channel.
func StartClient(ctx context.Context, cfg config.Config, roomID string) (*Transport, error) {
	req := signaling.Message{
		Type:       signaling.MsgJoin,
		Room:       roomID,
		APIVersion: cfg.APIVersion,
	}
	return startClient(ctx, cfg, roomID, req)
}

// StartRejoin reclaims a previously assigned seat after a disconnect. The
// host validates the claimed player ID before re-admitting.
func StartRejoin(ctx context.Context, cfg config.Config, roomID string, playerID uint8) (*Transport, error) {
	req := signaling.Message{
		Type:       signaling.MsgRejoin,
		Room:       roomID,
		PlayerID:   playerID,
		APIVersion: cfg.APIVersion,
	}
	return startClient(ctx, cfg, roomID, req)
}

func startClient(ctx context.Context, cfg config.Config, roomID string, req signaling.Message) (*Transport, error) {
	ws, err := signaling.Dial(ctx, cfg.RendezvousURL)
	if err != nil {
		return nil, err
	}
	if err := ws.Send(req); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to send join request: %w", err)
	}

	reply, err := ws.Read()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to read join reply: %w", err)
	}

	tCtx, tCancel := context.WithCancel(ctx)
	t := &Transport{
		roomID:     roomID,
		apiVersion: cfg.APIVersion,
		ctx:        tCtx,
		cancel:     tCancel,
		openSignal: make(chan struct{}),
	}

	switch reply.Type {
	case signaling.MsgDeny:
		util.LogInfo("join denied: %s", reply.Reason)
		t.push(originLocal, denialMessage(reply.Reason))
		_ = ws.Close()
		return t, nil
	case signaling.MsgAdmit:
		// Keep the rendezvous link on the transport until the DataChannel
		// opens, so Close can tear down a half-finished negotiation.
		t.ws = ws
	default:
		_ = ws.Close()
		tCancel()
		return nil, fmt.Errorf("unexpected reply %q to join request", reply.Type)
	}

	if err := t.negotiate(ws); err != nil {
		_ = ws.Close()
		tCancel()
		return nil, err
	}
	return t, nil
}

// denialMessage maps a rendezvous denial onto the wire message the session
// already knows how to dispatch.
func denialMessage(reason string) []byte {
	switch reason {
	case signaling.ReasonRoomInvalid:
		return protocol.NewJoinRoom(protocol.JoinRoomInvalid, 0, 0, 0)
	case signaling.ReasonRoomFull:
		return protocol.NewJoinRoom(protocol.JoinRoomFull, 0, 0, 0)
	case signaling.ReasonAPIMismatch:
		return protocol.NewApiMismatch()
	case signaling.ReasonRejoinRejected:
		return protocol.NewJoinRoom(protocol.JoinReconnectDenied, 0, 0, 0)
	default:
		return protocol.NewGenericError()
	}
}

// negotiate drives the client side of the SDP/ICE exchange and installs the
// DataChannel callbacks. It returns once the offer is on the wire; the rest
// of the handshake completes on background goroutines.
func (t *Transport) negotiate(ws *signaling.Conn) error {
	pc, err := newPeerConnection()
	if err != nil {
		return err
	}
	dc, err := newDataChannel(pc)
	if err != nil {
		_ = pc.Close()
		return err
	}
	t.mu.Lock()
	t.pc, t.dc = pc, dc
	t.mu.Unlock()

	// settled flips once the attempt has a definite outcome, so the
	// watchdog and the read loop don't pile errors on top of it.
	var settled bool
	settle := func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		if settled {
			return false
		}
		settled = true
		return true
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if err := ws.Send(signaling.Message{Type: signaling.MsgCandidate, Candidate: string(raw)}); err != nil {
			util.LogDebug("candidate send failed: %v", err)
		}
	})

	dc.OnOpen(func() {
		if !settle() {
			return
		}
		util.Stats.AddPeer()
		util.LogInfo("connected to host")
		close(t.openSignal)
		// The rendezvous link has done its job.
		_ = ws.Close()
		t.mu.Lock()
		if t.ws == ws {
			t.ws = nil
		}
		t.mu.Unlock()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		t.push(0, msg.Data)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if settle() {
				util.LogWarning("connection to host failed before opening")
				t.push(originLocal, protocol.NewGenericError())
			}
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	if err := ws.Send(signaling.Message{Type: signaling.MsgOffer, SDP: offer.SDP}); err != nil {
		return fmt.Errorf("failed to send offer: %w", err)
	}

	go t.clientSignalLoop(ws, pc, settle)

	go func() {
		select {
		case <-t.openSignal:
		case <-t.ctx.Done():
		case <-time.After(connectTimeout):
			if settle() {
				util.LogWarning("connection attempt timed out")
				t.push(originLocal, protocol.NewGenericError())
				_ = ws.Close()
				_ = pc.Close()
			}
		}
	}()

	return nil
}

// clientSignalLoop consumes the rendezvous link until the DataChannel opens
// or the attempt fails. It holds its own reference to the peer connection:
// Close nils the shared field while this loop may still be draining late
// negotiation messages.
func (t *Transport) clientSignalLoop(ws *signaling.Conn, pc *webrtc.PeerConnection, settle func() bool) {
	for {
		msg, err := ws.Read()
		if err != nil {
			// Normal once connected: OnOpen closed the link under us.
			if settle() {
				t.push(originLocal, protocol.NewGenericError())
			}
			return
		}

		switch msg.Type {
		case signaling.MsgAnswer:
			answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
			if err := pc.SetRemoteDescription(answer); err != nil {
				util.LogError("failed to apply answer: %v", err)
			}
		case signaling.MsgCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				util.LogWarning("bad candidate from host: %v", err)
				continue
			}
			if err := pc.AddICECandidate(init); err != nil {
				util.LogWarning("failed to add host candidate: %v", err)
			}
		case signaling.MsgDeny:
			// The host itself turned us away after admission.
			if settle() {
				util.LogInfo("host denied the connection: %s", msg.Reason)
				t.push(originLocal, denialMessage(msg.Reason))
				_ = ws.Close()
				_ = pc.Close()
			}
			return
		default:
			util.LogWarning("unexpected rendezvous message %q", msg.Type)
		}
	}
}
