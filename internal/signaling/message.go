// Package signaling implements the rendezvous protocol: a JSON envelope
// exchanged over WebSocket between peers and the rendezvous server during
// matchmaking and connection negotiation. After the data channel opens the
// rendezvous link carries no gameplay traffic; the host keeps its link open
// only to receive future joiners.
package signaling

// MessageType identifies the kind of rendezvous message.
type MessageType string

const (
	// MsgHost registers the sender as a room host. Carries APIVersion and
	// MaxPlayers. The server answers with MsgAssigned.
	MsgHost MessageType = "host"

	// MsgAssigned carries the freshly created room ID back to the host.
	MsgAssigned MessageType = "assigned"

	// MsgJoin asks to join an existing room. Carries Room and APIVersion.
	// The server answers with MsgAdmit or MsgDeny.
	MsgJoin MessageType = "join"

	// MsgRejoin asks to rejoin a room after a disconnect. Carries Room,
	// PlayerID and APIVersion.
	MsgRejoin MessageType = "rejoin"

	// MsgAdmit tells a joining client its relay slot. Negotiation messages
	// between this client and the host are addressed by that slot.
	MsgAdmit MessageType = "admit"

	// MsgDeny rejects a join or rejoin. Carries Reason.
	MsgDeny MessageType = "deny"

	// MsgOffer, MsgAnswer and MsgCandidate are SDP/ICE negotiation messages
	// relayed verbatim between a client (identified by Slot) and the host.
	MsgOffer     MessageType = "offer"
	MsgAnswer    MessageType = "answer"
	MsgCandidate MessageType = "candidate"

	// MsgPeerLeft is sent by the host when a peer's connection is gone, so
	// the server can release the seat.
	MsgPeerLeft MessageType = "peer-left"
)

// Deny reasons.
const (
	ReasonRoomInvalid    = "room-invalid"
	ReasonRoomFull       = "room-full"
	ReasonAPIMismatch    = "api-mismatch"
	ReasonRejoinRejected = "rejoin-rejected"
)

// Message is the JSON envelope for every rendezvous exchange. Only the
// fields relevant to the Type are populated.
type Message struct {
	Type       MessageType `json:"type"`
	Room       string      `json:"room,omitempty"`
	Slot       int         `json:"slot,omitempty"`
	PlayerID   uint8       `json:"playerId,omitempty"`
	APIVersion uint8       `json:"apiVersion"`
	MaxPlayers uint8       `json:"maxPlayers,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	SDP        string      `json:"sdp,omitempty"`
	Candidate  string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
