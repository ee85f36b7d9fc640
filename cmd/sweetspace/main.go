// Sweetspace — CLI entry point.
//
// Runs one player of a cooperative multiplayer session: host a room or join
// one by code, punch through NAT to the host over WebRTC, and drive the
// fixed-tick game loop until the campaign ends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/onewordstudios/sweetspace-sub002/internal/config"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var serverURL string
	var debugMode bool
	var skipTutorial bool

	rootCmd := &cobra.Command{
		Use:   "sweetspace",
		Short: "Cooperative multiplayer over P2P",
		Long: `Sweetspace runs one player of a cooperative multiplayer session.

A host opens a room and shares its five-letter code; everyone else joins
with that code. After matchmaking, gameplay traffic flows directly between
players over WebRTC — the rendezvous server only brokers the connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugMode {
				util.EnableDebug()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand → interactive mode.
			return runInteractive(ctx, makeConfig(serverURL, skipTutorial))
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", config.DefaultRendezvousURL,
		"rendezvous server WebSocket URL")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&skipTutorial, "skip-tutorial", false, "skip tutorial levels")

	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Open a new room and wait for players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(ctx, makeConfig(serverURL, skipTutorial))
		},
	}

	joinCmd := &cobra.Command{
		Use:   "join <room>",
		Short: "Join a room by its five-letter code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := normalizeRoomID(args[0])
			if err != nil {
				return err
			}
			return runClient(ctx, makeConfig(serverURL, skipTutorial), roomID)
		},
	}

	rootCmd.AddCommand(hostCmd, joinCmd, versionCmd())

	if err := rootCmd.Execute(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func makeConfig(serverURL string, skipTutorial bool) config.Config {
	cfg := config.Default()
	cfg.RendezvousURL = serverURL
	cfg.SkipTutorial = skipTutorial
	return cfg
}

// normalizeRoomID validates a raw room code.
func normalizeRoomID(raw string) (string, error) {
	roomID := strings.ToUpper(strings.TrimSpace(raw))
	if len(roomID) != protocol.RoomLength {
		return "", fmt.Errorf("room code must be %d characters, got %q", protocol.RoomLength, raw)
	}
	return roomID, nil
}

// runInteractive falls back to interactive prompts when no subcommand is given.
func runInteractive(ctx context.Context, cfg config.Config) error {
	pterm.Info.Println(fmt.Sprintf("Sweetspace — v%s", version))
	pterm.Println()

	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Open a new room", "Join  — Enter a room code"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		return runHost(ctx, cfg)
	}
	return runClient(ctx, cfg, askRoomID())
}

// askRoomID prompts for a room code until a valid one is entered.
func askRoomID() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("Room code (%d letters)", protocol.RoomLength)).
			Show()

		roomID, err := normalizeRoomID(raw)
		if err == nil {
			pterm.Println()
			return roomID
		}

		util.LogWarning("%v", err)
		pterm.Println()
	}
}
