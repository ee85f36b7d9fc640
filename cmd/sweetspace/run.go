package main

import (
	"context"
	"errors"
	"time"

	"github.com/pterm/pterm"

	"github.com/onewordstudios/sweetspace-sub002/internal/config"
	"github.com/onewordstudios/sweetspace-sub002/internal/game"
	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
	"github.com/onewordstudios/sweetspace-sub002/internal/session"
	"github.com/onewordstudios/sweetspace-sub002/internal/util"
)

// frameRate is the fixed tick rate of the game loop.
const frameRate = 60

// Level layout defaults. A full game client reads these from level files;
// the headless loop uses one layout for every level.
const (
	levelBreaches = 12
	levelDoors    = 6
	levelButtons  = 6
	levelHealth   = 10
	levelTime     = 120
)

// startLevel is where a fresh campaign begins.
const startLevel uint8 = 0

// runHost opens a room, waits for enough players, and runs the game loop.
func runHost(ctx context.Context, cfg config.Config) error {
	sess := session.New(cfg)
	sess.SetSkipTutorial(cfg.SkipTutorial)

	if !sess.HostGame(ctx) {
		return errors.New("failed to host game")
	}

	util.StartStatsReporter(ctx)
	return loop(ctx, sess)
}

// runClient joins an existing room and runs the game loop.
func runClient(ctx context.Context, cfg config.Config, roomID string) error {
	sess := session.New(cfg)
	sess.SetSkipTutorial(cfg.SkipTutorial)

	if !sess.JoinGame(ctx, roomID) {
		return errors.New("failed to join game")
	}

	util.StartStatsReporter(ctx)
	return loop(ctx, sess)
}

// loop is the fixed-tick driver shared by both roles. Lifecycle:
//
//  1. Matchmaking: pump the session until the room is assigned (host) or the
//     seat is confirmed (client). The host starts the game once the minimum
//     player count is reached.
//  2. Gameplay: tick the ship timer and the session each frame, acting on
//     level-change events.
//  3. Teardown: a client that drops mid-game keeps retrying Reconnect; a
//     denied or failed session exits with the reason.
func loop(ctx context.Context, sess *session.Session) error {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	var ship *game.ShipModel
	announced := false

	for {
		select {
		case <-ctx.Done():
			sess.Reset()
			return nil
		case <-ticker.C:
		}

		if ship != nil {
			ship.UpdateTimer(1.0 / frameRate)
		}
		sess.Update(ship)

		switch sess.Status() {
		case session.HostWaitingOnOthers:
			if !announced {
				announced = true
				pterm.Println()
				util.LogSuccess("room open — share this code: %s", sess.RoomID())
			}
			if sess.NumPlayers() >= protocol.MinPlayers {
				util.LogInfo("starting game with %d players", sess.NumPlayers())
				sess.StartGame(startLevel)
			}

		case session.ClientWaitingOnOthers:
			if !announced {
				announced = true
				util.LogSuccess("joined room %s as player %d", sess.RoomID(), sess.PlayerID())
			}

		case session.GameStart:
			if ship == nil {
				ship = newShip(sess)
				util.LogInfo("level %d loaded", sess.LevelNum())
			}
			if sess.LastNetworkEvent() == session.EventLoadLevel {
				sess.AcknowledgeNetworkEvent()
				ship = newShip(sess)
				util.LogInfo("level %d loaded", sess.LevelNum())
			}

			// The host advances the campaign when a level ends.
			if ship != nil && ship.LevelOver() && sess.PlayerID() == 0 {
				if ship.Health() <= 0 {
					util.LogInfo("level %d lost; restarting", sess.LevelNum())
					sess.RestartGame()
				} else {
					util.LogInfo("level %d won", sess.LevelNum())
					sess.NextLevel()
				}
			}

		case session.GameEnded:
			sess.AcknowledgeNetworkEvent()
			util.LogSuccess("campaign complete")
			sess.Reset()
			return nil

		case session.Disconnected:
			ship = nil
			if sess.PlayerID() == 0 {
				return errors.New("connection lost")
			}
			util.LogWarning("connection lost; attempting to reconnect")
			sess.Reconnect(ctx)

		case session.Reconnecting, session.ReconnectPending:
			// Waiting on the host; keep pumping.

		case session.ReconnectError:
			return errors.New("failed to reconnect to the game")

		case session.HostApiMismatch, session.ClientApiMismatch:
			return errors.New("game version does not match the host; please update")
		case session.ClientRoomInvalid:
			return errors.New("room does not exist")
		case session.ClientRoomFull:
			return errors.New("room is full")
		case session.HostError, session.ClientError:
			return errors.New("connection failed")
		}
	}
}

// newShip builds the ship model for the session's current level.
func newShip(sess *session.Session) *game.ShipModel {
	ship := game.NewShipModel(
		protocol.MaxPlayers,
		levelBreaches, levelDoors, levelButtons,
		levelHealth, levelTime,
	)
	if sess.LevelNum() >= 0 && game.IsTutorial(uint8(sess.LevelNum())) {
		ship.SetTimeless(true)
	}
	for i, d := range ship.Donuts() {
		d.Active = sess.IsPlayerActive(i)
	}
	return ship
}
