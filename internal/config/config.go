// Package config holds the CLI configuration types.
package config

import "github.com/onewordstudios/sweetspace-sub002/internal/protocol"

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// DefaultRendezvousURL points at a locally running rendezvous server.
const DefaultRendezvousURL = "ws://127.0.0.1:61111/ws"

// Config stores all parameters gathered from flags or the interactive CLI
// prompts.
type Config struct {
	Role          Role
	RendezvousURL string // WebSocket URL of the rendezvous server
	RoomID        string // Client: room code to join
	MaxPlayers    int    // Host: seat count registered with the server
	APIVersion    uint8  // Wire compatibility version exchanged on join
	SkipTutorial  bool   // Skip tutorial levels when starting or advancing
}

// Default returns a Config with the standard game parameters filled in.
func Default() Config {
	return Config{
		RendezvousURL: DefaultRendezvousURL,
		MaxPlayers:    protocol.MaxPlayers,
		APIVersion:    protocol.APIVersion,
	}
}
