package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/game"
	"github.com/DoyleJ11/tapbattle/internal/lobby"
	"github.com/DoyleJ11/tapbattle/internal/remote"
)

var errMatchOver = errors.New("match over")

// lobbyResult is what the match inherits from the lobby: the START that
// ended it and the still open subscription positioned right after it.
type lobbyResult struct {
	State lobby.State
	Start *engine.Start
	Sub   remote.Subscription
}

func matchConfig(
	ready lobbyResult,
	player string,
	gateway remote.Gateway,
	events remote.EventSource,
	recorder game.Recorder,
	logger *zap.Logger,
) game.Config {
	return game.Config{
		RoomID:       ready.State.RoomID,
		RoomCode:     ready.State.RoomCode,
		PlayerName:   player,
		Gateway:      gateway,
		Subscription: ready.Sub,
		Events:       events,
		Initial:      ready.Start,
		Recorder:     recorder,
		Logger:       logger,
	}
}

// waitInLobby joins the room and blocks until the match starts.
func waitInLobby(
	ctx context.Context,
	gateway remote.Gateway,
	events remote.EventSource,
	logger *zap.Logger,
	code, player string,
	autoStart bool,
) (lobbyResult, error) {
	l := lobby.NewLobby(ctx, lobby.Config{Gateway: gateway, Events: events, Logger: logger})
	defer func() { _ = l.Close() }()

	out := make(chan lobby.Update, 16)
	l.Inbox() <- lobby.Watch{ID: "cli", Outbox: out}
	l.Join(code, player)

	startSent := false
	for {
		select {
		case <-ctx.Done():
			return lobbyResult{}, ctx.Err()

		case u, ok := <-out:
			if !ok {
				return lobbyResult{}, errors.New("lobby closed")
			}
			st := u.State
			if u.Err != nil {
				logger.Warn("lobby", zap.String("status", string(st.Status)), zap.Error(u.Err))
				if st.Status == lobby.StatusIdle {
					return lobbyResult{}, u.Err
				}
			}

			switch st.Status {
			case lobby.StatusJoined:
				logger.Info("waiting for players",
					zap.String("room_code", st.RoomCode),
					zap.Int("players", st.PlayerCount),
					zap.Bool("creator", st.IsCreator),
				)
				if autoStart && !startSent && st.CanStart() {
					startSent = true
					l.Start()
				}

			case lobby.StatusMatchStarting:
				res := lobbyResult{State: st, Sub: l.TakeSubscription(ctx)}
				if start, ok := u.Event.(engine.Start); ok {
					res.Start = &start
				}
				return res, nil
			}
		}
	}
}

// followMatch logs every session update and returns errMatchOver once the
// match has ended.
func followMatch(ctx context.Context, s *game.Session, logger *zap.Logger) error {
	out := make(chan game.Update, 64)
	s.Inbox() <- game.Watch{ID: "cli", Outbox: out}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-out:
			if !ok {
				return errMatchOver
			}
			if u.Err != nil {
				logger.Warn("match", zap.Error(u.Err))
			}
			st := u.State
			fields := []zap.Field{
				zap.String("phase", string(st.Phase())),
				zap.Int("round", st.Round),
				zap.Int("max_rounds", st.MaxRounds),
				zap.Any("score", st.Score),
			}
			if t := st.CurrentTarget; t != nil {
				fields = append(fields,
					zap.String("spawn_id", t.SpawnID),
					zap.Float64("cx", t.CX),
					zap.Float64("cy", t.CY),
					zap.Float64("r", t.R),
				)
			}
			logger.Info("match update", fields...)

			if st.Ended {
				logger.Info("match over",
					zap.String("champion", st.Champion),
					zap.Bool("won", st.Champion == st.PlayerName),
				)
				return errMatchOver
			}
		}
	}
}

// readTaps feeds "x y" lines to the session. "r" asks for a scoreboard
// refresh.
func readTaps(r io.Reader, s *game.Session, logger *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "r" {
			s.Refresh()
			continue
		}
		x, y, ok := parseTap(line)
		if !ok {
			logger.Warn("bad tap, want \"x y\"", zap.String("line", line))
			continue
		}
		logger.Debug("tap", zap.Float64("x", x), zap.Float64("y", y), zap.Bool("hit", s.Tap(x, y)))
	}
}

func parseTap(line string) (x, y float64, ok bool) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return 0, 0, false
	}
	x, errX := strconv.ParseFloat(parts[0], 64)
	y, errY := strconv.ParseFloat(parts[1], 64)
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return x, y, true
}
