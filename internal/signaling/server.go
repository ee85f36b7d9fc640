package signaling

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the rendezvous server core: it brokers rooms and relays SDP/ICE
// negotiation between each room's host and its joining clients. It never
// carries gameplay traffic.
type Server struct {
	log     *zap.SugaredLogger
	metrics *Metrics

	mu    sync.Mutex
	rooms map[string]*room
}

// room tracks one host and its pending joiners. seated counts every player
// holding a seat, host included; it is the capacity that MsgJoin admission
// checks against and MsgPeerLeft releases.
type room struct {
	id         string
	host       *Conn
	maxPlayers int
	apiVersion uint8
	seated     int
	nextSlot   int
	clients    map[int]*Conn
}

// NewServer creates a rendezvous server.
func NewServer(log *zap.SugaredLogger, metrics *Metrics) *Server {
	return &Server{
		log:     log,
		metrics: metrics,
		rooms:   make(map[string]*room),
	}
}

// Router builds the HTTP surface: the rendezvous WebSocket, a health probe,
// and Prometheus metrics.
func (s *Server) Router(reg *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// handleWS upgrades the connection and dispatches on the first message:
// hosts register a room, clients ask to join one.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade failed: %v", err)
		return
	}
	conn := newConn(ws)

	first, err := conn.Read()
	if err != nil {
		_ = conn.Close()
		return
	}

	switch first.Type {
	case MsgHost:
		s.serveHost(conn, first)
	case MsgJoin, MsgRejoin:
		s.serveClient(conn, first)
	default:
		s.log.Warnf("unexpected first message %q; closing", first.Type)
		_ = conn.Close()
	}
}

// ---------------------------------------------------------------------------
// Host side
// ---------------------------------------------------------------------------

func (s *Server) serveHost(conn *Conn, reg Message) {
	maxPlayers := int(reg.MaxPlayers)
	if maxPlayers < 2 {
		maxPlayers = 2
	}

	rm := &room{
		host:       conn,
		maxPlayers: maxPlayers,
		apiVersion: reg.APIVersion,
		seated:     1,
		clients:    make(map[int]*Conn),
	}

	s.mu.Lock()
	for {
		id := newRoomID()
		if _, taken := s.rooms[id]; !taken {
			rm.id = id
			s.rooms[id] = rm
			break
		}
	}
	s.mu.Unlock()

	s.metrics.RoomsOpen.Inc()
	s.metrics.PeersSeated.Inc()
	s.log.Infof("room %s registered (api %d, max %d)", rm.id, rm.apiVersion, rm.maxPlayers)

	if err := conn.Send(Message{Type: MsgAssigned, Room: rm.id}); err != nil {
		s.closeRoom(rm)
		return
	}

	for {
		msg, err := conn.Read()
		if err != nil {
			s.log.Infof("room %s host gone: %v", rm.id, err)
			s.closeRoom(rm)
			return
		}

		switch msg.Type {
		case MsgAnswer, MsgCandidate:
			s.relayToClient(rm, msg)
		case MsgDeny:
			// Host-side rejection of an admitted peer; the seat opens back up.
			s.relayToClient(rm, msg)
			s.releaseSeat(rm, msg.Slot)
			s.metrics.JoinsDenied.WithLabelValues(msg.Reason).Inc()
		case MsgPeerLeft:
			s.releaseSeat(rm, msg.Slot)
			s.log.Infof("room %s slot %d left", rm.id, msg.Slot)
		default:
			s.log.Warnf("room %s host sent unexpected %q", rm.id, msg.Type)
		}
	}
}

// ---------------------------------------------------------------------------
// Client side
// ---------------------------------------------------------------------------

func (s *Server) serveClient(conn *Conn, req Message) {
	deny := func(reason string) {
		s.metrics.JoinsDenied.WithLabelValues(reason).Inc()
		_ = conn.Send(Message{Type: MsgDeny, Reason: reason})
		_ = conn.Close()
	}

	s.mu.Lock()
	rm, ok := s.rooms[req.Room]
	if !ok {
		s.mu.Unlock()
		s.log.Infof("join denied: room %q not found", req.Room)
		deny(ReasonRoomInvalid)
		return
	}
	if req.APIVersion != rm.apiVersion {
		s.mu.Unlock()
		s.log.Infof("join denied for room %s: api %d != %d", rm.id, req.APIVersion, rm.apiVersion)
		deny(ReasonAPIMismatch)
		return
	}
	if rm.seated >= rm.maxPlayers {
		s.mu.Unlock()
		s.log.Infof("join denied for room %s: full", rm.id)
		deny(ReasonRoomFull)
		return
	}
	rm.nextSlot++
	slot := rm.nextSlot
	rm.clients[slot] = conn
	rm.seated++
	host := rm.host
	s.mu.Unlock()

	s.metrics.PeersSeated.Inc()
	s.metrics.JoinsAdmitted.Inc()
	s.log.Infof("room %s: slot %d admitted (%s)", rm.id, slot, req.Type)

	// Tell the host first so it can prepare the peer connection, then hand
	// the client its relay slot.
	fwd := Message{Type: req.Type, Slot: slot, PlayerID: req.PlayerID, APIVersion: req.APIVersion}
	if err := host.Send(fwd); err != nil {
		s.log.Warnf("room %s: host unreachable: %v", rm.id, err)
		deny(ReasonRoomInvalid)
		return
	}
	if err := conn.Send(Message{Type: MsgAdmit, Slot: slot, Room: rm.id}); err != nil {
		_ = conn.Close()
		return
	}

	for {
		msg, err := conn.Read()
		if err != nil {
			// The client closes its rendezvous link once the data channel is
			// up; the seat is only released by the host's MsgPeerLeft.
			s.mu.Lock()
			delete(rm.clients, slot)
			s.mu.Unlock()
			return
		}

		switch msg.Type {
		case MsgOffer, MsgCandidate:
			msg.Slot = slot
			s.metrics.MessagesRelays.Inc()
			if err := host.Send(msg); err != nil {
				s.log.Warnf("room %s: relay to host failed: %v", rm.id, err)
			}
		default:
			s.log.Warnf("room %s slot %d sent unexpected %q", rm.id, slot, msg.Type)
		}
	}
}

// ---------------------------------------------------------------------------
// Room bookkeeping
// ---------------------------------------------------------------------------

func (s *Server) relayToClient(rm *room, msg Message) {
	s.mu.Lock()
	c := rm.clients[msg.Slot]
	s.mu.Unlock()
	if c == nil {
		return
	}
	s.metrics.MessagesRelays.Inc()
	if err := c.Send(msg); err != nil {
		s.log.Warnf("room %s: relay to slot %d failed: %v", rm.id, msg.Slot, err)
	}
}

func (s *Server) releaseSeat(rm *room, slot int) {
	s.mu.Lock()
	if c, ok := rm.clients[slot]; ok {
		_ = c.Close()
		delete(rm.clients, slot)
	}
	if rm.seated > 1 {
		rm.seated--
		s.metrics.PeersSeated.Dec()
	}
	s.mu.Unlock()
}

func (s *Server) closeRoom(rm *room) {
	s.mu.Lock()
	delete(s.rooms, rm.id)
	clients := rm.clients
	rm.clients = make(map[int]*Conn)
	seated := rm.seated
	rm.seated = 0
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.Send(Message{Type: MsgDeny, Reason: ReasonRoomInvalid})
		_ = c.Close()
	}
	_ = rm.host.Close()

	s.metrics.RoomsOpen.Dec()
	s.metrics.PeersSeated.Sub(float64(seated))
	s.log.Infof("room %s closed", rm.id)
}

// roomIDAlphabet deliberately omits easily-confused characters.
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newRoomID returns a random room code of RoomLength characters.
func newRoomID() string {
	id := make([]byte, roomLength)
	for i := range id {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDAlphabet))))
		id[i] = roomIDAlphabet[n.Int64()]
	}
	return string(id)
}

// roomLength mirrors protocol.RoomLength without importing the gameplay wire
// package into the server.
const roomLength = 5
