package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Parley/internal/adapters/auth"
	router "github.com/dkeye/Parley/internal/adapters/http"
	sig "github.com/dkeye/Parley/internal/adapters/signal"
	"github.com/dkeye/Parley/internal/adapters/store/badgerstore"
	"github.com/dkeye/Parley/internal/adapters/store/memory"
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/core"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("parley exited")
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	persistence, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	verifier, err := auth.NewVerifier(cfg.Secret, 0)
	if err != nil {
		log.Warn().Err(err).Msg("token verification disabled")
	}

	emptyRooms, err := app.ParseEmptyRoomPolicy(cfg.Signal.EmptyRoomPolicy)
	if err != nil {
		return err
	}

	ocfg := orch.Config{
		Persistence:        persistence,
		Policy:             app.SimplePolicy{},
		EmptyRooms:         emptyRooms,
		EmptyRoomTTL:       cfg.Signal.EmptyRoomTTL,
		ReapInterval:       cfg.Signal.ReapInterval,
		PersistTimeout:     cfg.Signal.PersistTimeout,
		RequireAuth:        cfg.Signal.RequireAuth,
		LegacyGlobalFanout: cfg.Signal.LegacyGlobalFanout,
	}
	deps := router.Deps{}
	if verifier != nil {
		deps.Auth = verifier
		deps.Tokens = verifier
		ocfg.Auth = verifier
	}
	o := orch.New(ocfg)
	if err := o.Start(ctx); err != nil {
		return err
	}

	ctl := sig.NewSignalController(o, sig.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		PollIdle:   cfg.Poll.IdleTimeout,
		PollWait:   cfg.Poll.Wait,
		RateLimit:  cfg.RateLimit.Events,
		RateWindow: cfg.RateLimit.Interval,
	})

	deps.Orch, deps.Signal = o, ctl
	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Parley server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error { return ctl.RunPolls(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		// drain first so clients are told to go before the listener closes
		o.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited")
	return err
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openStore(cfg config.Store) (core.PersistenceService, func(), error) {
	switch cfg.Driver {
	case "badger":
		s, err := badgerstore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("module", "store").Str("path", cfg.Path).Msg("badger store opened")
		return s, closer(s), nil
	default:
		log.Info().Str("module", "store").Msg("in-memory store")
		return memory.New(), func() {}, nil
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("module", "store").Msg("close store")
		}
	}
}
