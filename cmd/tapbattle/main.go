package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tapbattle/internal/config"
	"github.com/DoyleJ11/tapbattle/internal/history"
	"github.com/DoyleJ11/tapbattle/internal/history/gormstore"
	"github.com/DoyleJ11/tapbattle/internal/history/sqlite"
	"github.com/DoyleJ11/tapbattle/internal/httpapi"
	"github.com/DoyleJ11/tapbattle/internal/hub"
	"github.com/DoyleJ11/tapbattle/internal/logging"
	"github.com/DoyleJ11/tapbattle/internal/rpc"
	"github.com/DoyleJ11/tapbattle/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tapbattle:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	code := flag.String("code", "", "room code to join")
	player := flag.String("player", "", "player name (defaults to TAPBATTLE_PLAYER)")
	autoStart := flag.Bool("auto-start", false, "start the match once the opponent joins (creator only)")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	name := *player
	if name == "" {
		name = cfg.Player
	}
	if name == "" {
		return errors.New("player name is required (-player or TAPBATTLE_PLAYER)")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	gateway := rpc.New(cfg.ServerURL, cfg.RequestTimeout, logger, rpc.WithAppID(cfg.AppID))
	events := ws.NewDialer(cfg.EventsURL, cfg.AppID, logger)

	ready, err := waitInLobby(ctx, gateway, events, logger, *code, name, *autoStart)
	if err != nil {
		return err
	}

	h := hub.NewHub(ctx, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, h.Shutdown(shutdownCtx))
	}()

	session, err := h.Ensure(ctx, matchConfig(ready, name, gateway, events, history.NewRecorder(store, logger), logger))
	if err != nil {
		if ready.Sub != nil {
			_ = ready.Sub.Close()
		}
		return err
	}

	srv := &http.Server{
		Addr:              cfg.StatusAddr,
		Handler:           httpapi.SetupRoutes(h, store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("status api listening", zap.String("addr", cfg.StatusAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return followMatch(gctx, session, logger)
	})
	go readTaps(os.Stdin, session, logger)

	err = g.Wait()
	if errors.Is(err, errMatchOver) || errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func openHistory(cfg config.Config) (history.Store, error) {
	switch cfg.HistoryDriver {
	case config.DriverPostgres:
		return gormstore.Open(cfg.HistoryDSN)
	default:
		return sqlite.Open(cfg.HistoryDSN)
	}
}
