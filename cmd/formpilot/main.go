package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/formpilot/engine/internal/api/http"
	"github.com/formpilot/engine/internal/bridge"
	"github.com/formpilot/engine/internal/config"
	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/metrics"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/pattern"
	"github.com/formpilot/engine/internal/recorder"
	"github.com/formpilot/engine/internal/replay"
	"github.com/formpilot/engine/internal/store"
	"github.com/formpilot/engine/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.Logger()
	log.Info().Str("version", version.Get().Version).Msg("Starting FormPilot engine")

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", cfg.Storage.DataDir).Msg("Failed to open session store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing session store")
		}
	}()

	collector := metrics.NewCollector()
	met := metrics.New(collector)

	br := bridge.New()
	gate := exclusive.NewGate()
	signals := notify.Multi(notify.NewLogSignaler(met), br)

	rec := recorder.New(br, br, st, signals, gate, met)
	filter := pattern.New(st, cfg.Recording.PatternThreshold)
	eng := replay.New(st, filter, br, br, signals, gate, met)

	replayDefaults := replay.Config{
		HumanLikeDelays:  cfg.Replay.HumanLikeDelays,
		MinDelay:         cfg.Replay.MinDelay,
		MaxDelay:         cfg.Replay.MaxDelay,
		TypingDelay:      cfg.Replay.TypingDelay,
		PauseOnChallenge: cfg.Replay.PauseOnChallenge,
		MaxRetries:       cfg.Replay.MaxRetries,
		ResolveWait:      cfg.Replay.ResolveWait,
		QuietInterval:    cfg.Replay.QuietInterval,
		QuietTimeout:     cfg.Replay.QuietTimeout,
	}

	router := httpapi.NewRouter(br, rec, st, eng, filter, replayDefaults)
	server := httpapi.NewServer(cfg.Server.HTTPAddr, router)

	ctx := context.Background()
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, collector.Registry())
		if err := metricsServer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// An in-flight replay holds the page; stop it before taking the
	// servers down so its final state is persisted.
	if err := eng.Stop(); err != nil {
		log.Warn().Err(err).Msg("Error stopping replay engine")
	}
	if rec.Recording() {
		if err := rec.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Error stopping recorder")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Error stopping metrics server")
		}
	}
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Error stopping HTTP server")
	}
	if err := br.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing extension bridge")
	}

	log.Info().Msg("Shutdown complete")
}
