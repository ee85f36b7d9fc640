package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/onewordstudios/sweetspace-sub002/internal/config"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/signaling"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// StartHost registers a new room with the rendezvous server and returns a
// host transport. Lifecycle:
//
//  1. Dial the rendezvous server and register as a host.
//  2. Receive the assigned room code; it is queued as an AssignedRoom
//     message so the session learns it through the normal receive path.
//  3. A background loop accepts joiners forwarded by the server and
//     negotiates one DataChannel per client.
//
// The host keeps its rendezvous link open for the whole match so that late
// joiners and reconnecting players can still be negotiated.
func StartHost(ctx context.Context, cfg config.Config) (*Transport, error) {
	ws, err := signaling.Dial(ctx, cfg.RendezvousURL)
	if err != nil {
		return nil, err
	}

	reg := signaling.Message{
		Type:       signaling.MsgHost,
		APIVersion: cfg.APIVersion,
		MaxPlayers: uint8(cfg.MaxPlayers),
	}
	if err := ws.Send(reg); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to register room: %w", err)
	}

	reply, err := ws.Read()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to read room assignment: %w", err)
	}
	if reply.Type != signaling.MsgAssigned {
		_ = ws.Close()
		return nil, fmt.Errorf("unexpected reply %q to host registration", reply.Type)
	}

	tCtx, tCancel := context.WithCancel(ctx)
	ready := make(chan struct{})
	close(ready)

	t := &Transport{
		host:       true,
		roomID:     reply.Room,
		apiVersion: cfg.APIVersion,
		ctx:        tCtx,
		cancel:     tCancel,
		ws:         ws,
		peers:      make(map[int]*peerLink),
		openSignal: ready,
	}
	t.taken[0] = true // the host is player 0

	util.LogInfo("hosting room %s", t.roomID)
	t.push(originLocal, protocol.NewAssignedRoom(t.roomID))

	go t.hostLoop()
	return t, nil
}

// hostLoop reads the rendezvous link for the lifetime of the room, handling
// joiner admission and relaying negotiation messages per slot.
func (t *Transport) hostLoop() {
	for {
		msg, err := t.ws.Read()
		if err != nil {
			if t.ctx.Err() == nil {
				util.LogWarning("rendezvous link lost, no new players can join: %v", err)
			}
			return
		}

		switch msg.Type {
		case signaling.MsgJoin:
			t.admitJoin(msg.Slot)
		case signaling.MsgRejoin:
			t.admitRejoin(msg.Slot, msg.PlayerID)
		case signaling.MsgOffer:
			t.handleOffer(msg)
		case signaling.MsgCandidate:
			t.handleCandidate(msg)
		default:
			util.LogWarning("unexpected rendezvous message %q", msg.Type)
		}
	}
}

func (t *Transport) signalSend(msg signaling.Message) {
	t.mu.Lock()
	ws := t.ws
	t.mu.Unlock()
	if ws == nil {
		return
	}
	if err := ws.Send(msg); err != nil {
		util.LogWarning("rendezvous send failed: %v", err)
	}
}

func (t *Transport) deny(slot int, reason string) {
	t.signalSend(signaling.Message{Type: signaling.MsgDeny, Slot: slot, Reason: reason})
}

// admitJoin reserves the lowest free player seat for a fresh joiner and
// spins up the peer connection. Joins after game start are denied; a
// running match only admits rejoins.
func (t *Transport) admitJoin(slot int) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		util.LogInfo("denying join: game already started")
		t.deny(slot, signaling.ReasonRoomFull)
		return
	}
	playerID := -1
	for id := 1; id < protocol.MaxPlayers; id++ {
		if !t.taken[id] {
			playerID = id
			break
		}
	}
	if playerID < 0 {
		t.mu.Unlock()
		t.deny(slot, signaling.ReasonRoomFull)
		return
	}
	t.taken[playerID] = true
	link := &peerLink{slot: slot, playerID: uint8(playerID)}
	t.peers[slot] = link
	t.mu.Unlock()

	if err := t.setupPeer(link); err != nil {
		util.LogError("failed to set up peer for slot %d: %v", slot, err)
		t.dropLink(link)
		t.deny(slot, signaling.ReasonRoomInvalid)
	}
}

// admitRejoin re-seats a previously assigned player. The claimed ID must
// belong to a seat that is taken but not currently connected.
func (t *Transport) admitRejoin(slot int, playerID uint8) {
	t.mu.Lock()
	valid := playerID >= 1 && int(playerID) < protocol.MaxPlayers && t.taken[playerID]
	if valid {
		for _, link := range t.peers {
			if link.playerID == playerID {
				valid = false
				break
			}
		}
	}
	if !valid {
		t.mu.Unlock()
		util.LogInfo("denying rejoin: player %d not reseatable", playerID)
		t.deny(slot, signaling.ReasonRejoinRejected)
		return
	}
	link := &peerLink{slot: slot, playerID: playerID, rejoin: true}
	t.peers[slot] = link
	t.mu.Unlock()

	if err := t.setupPeer(link); err != nil {
		util.LogError("failed to set up peer for slot %d: %v", slot, err)
		t.dropLink(link)
		t.deny(slot, signaling.ReasonRejoinRejected)
	}
}

// setupPeer builds the PeerConnection and DataChannel for one client and
// wires the lifecycle callbacks. The client initiates the offer.
func (t *Transport) setupPeer(link *peerLink) error {
	pc, err := newPeerConnection()
	if err != nil {
		return err
	}
	dc, err := newDataChannel(pc)
	if err != nil {
		_ = pc.Close()
		return err
	}
	link.pc, link.dc = pc, dc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		raw, err := json.Marshal(init)
		if err != nil {
			return
		}
		t.signalSend(signaling.Message{
			Type:      signaling.MsgCandidate,
			Slot:      link.slot,
			Candidate: string(raw),
		})
	})

	var closeOnce sync.Once
	closed := func() {
		closeOnce.Do(func() { t.peerClosed(link) })
	}
	dc.OnClose(closed)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			closed()
		}
	})

	dc.OnOpen(func() { t.peerOpened(link) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		t.push(link.slot, msg.Data)
	})
	return nil
}

// peerOpened completes admission once the DataChannel is up: the new player
// gets its JoinRoom assignment over the channel, and everyone (the host's
// own session included) hears PlayerJoined.
func (t *Transport) peerOpened(link *peerLink) {
	t.mu.Lock()
	link.open = true
	numPlayers := uint8(1)
	for _, l := range t.peers {
		if l.open {
			numPlayers++
		}
	}
	t.mu.Unlock()

	util.Stats.AddPeer()

	status := uint8(protocol.JoinOK)
	if link.rejoin {
		status = protocol.JoinReconnectPending
	}
	assign := protocol.NewJoinRoom(status, numPlayers, link.playerID, t.apiVersion)
	if err := link.dc.Send(assign); err != nil {
		util.LogError("failed to send seat assignment to player %d: %v", link.playerID, err)
		return
	}
	util.Stats.AddSent(len(assign))

	util.LogInfo("player %d connected (slot %d, rejoin=%t)", link.playerID, link.slot, link.rejoin)
	joined := protocol.NewPlayerJoined(link.playerID)
	t.broadcastExcept(link.slot, joined)
	t.push(originLocal, joined)
}

// peerClosed tears down a client link. The player's seat stays reserved so
// they can rejoin mid-game; only a never-opened fresh join releases it.
func (t *Transport) peerClosed(link *peerLink) {
	t.mu.Lock()
	if t.peers[link.slot] != link {
		t.mu.Unlock()
		return
	}
	delete(t.peers, link.slot)
	wasOpen := link.open
	link.open = false
	if !wasOpen && !link.rejoin {
		t.taken[link.playerID] = false
	}
	t.mu.Unlock()

	if wasOpen {
		util.Stats.RemovePeer()
		util.LogInfo("player %d disconnected (slot %d)", link.playerID, link.slot)
		gone := protocol.NewPlayerDisconnect(link.playerID)
		t.broadcastExcept(link.slot, gone)
		t.push(originLocal, gone)
	}
	t.signalSend(signaling.Message{Type: signaling.MsgPeerLeft, Slot: link.slot})
	_ = link.dc.Close()
	_ = link.pc.Close()
}

// dropLink removes a link that failed before negotiation got anywhere.
func (t *Transport) dropLink(link *peerLink) {
	t.mu.Lock()
	if t.peers[link.slot] == link {
		delete(t.peers, link.slot)
		if !link.rejoin {
			t.taken[link.playerID] = false
		}
	}
	t.mu.Unlock()
	if link.dc != nil {
		_ = link.dc.Close()
	}
	if link.pc != nil {
		_ = link.pc.Close()
	}
}

func (t *Transport) handleOffer(msg signaling.Message) {
	t.mu.Lock()
	link := t.peers[msg.Slot]
	t.mu.Unlock()
	if link == nil || link.pc == nil {
		util.LogWarning("offer for unknown slot %d", msg.Slot)
		return
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}
	if err := link.pc.SetRemoteDescription(offer); err != nil {
		util.LogError("failed to apply offer from slot %d: %v", msg.Slot, err)
		return
	}
	answer, err := link.pc.CreateAnswer(nil)
	if err != nil {
		util.LogError("failed to create answer for slot %d: %v", msg.Slot, err)
		return
	}
	if err := link.pc.SetLocalDescription(answer); err != nil {
		util.LogError("failed to apply answer for slot %d: %v", msg.Slot, err)
		return
	}
	t.signalSend(signaling.Message{Type: signaling.MsgAnswer, Slot: msg.Slot, SDP: answer.SDP})
}

func (t *Transport) handleCandidate(msg signaling.Message) {
	t.mu.Lock()
	link := t.peers[msg.Slot]
	t.mu.Unlock()
	if link == nil || link.pc == nil {
		return
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
		util.LogWarning("bad candidate from slot %d: %v", msg.Slot, err)
		return
	}
	if err := link.pc.AddICECandidate(init); err != nil {
		util.LogWarning("failed to add candidate from slot %d: %v", msg.Slot, err)
	}
}
