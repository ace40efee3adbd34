// Command pinger serves the manual trigger and status API and, when a change
// detector is configured, runs scheduled pings on SCHEDULE_INTERVAL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/update-pinger/internal/config"
	"github.com/Sternrassler/update-pinger/internal/server"
	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/pinger"
	"github.com/Sternrassler/update-pinger/pkg/report"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger = logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}
	defer store.Close()
	logger.Info().Str("backend", cfg.Store.Backend).Msg("Store connected")

	det, err := cfg.NewDetector()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create change detector")
	}

	svc := pinger.NewService(store, det, cfg.Pinger())

	if cfg.AuthToken == "" {
		logger.Warn().Msg("AUTH_TOKEN not set, manual trigger and endpoint updates are disabled")
	}
	srv := server.New(svc, server.Config{AuthToken: cfg.AuthToken})

	if det != nil && cfg.ScheduleInterval > 0 {
		go svc.RunEvery(ctx, cfg.ScheduleInterval, func(rep *report.Report) {
			logger.Debug().Str("status", string(rep.Status)).Str("reason", rep.Reason).Msg("Scheduled tick")
		})
	} else {
		logger.Info().Str("detector", cfg.Detector).Dur("interval", cfg.ScheduleInterval).Msg("In-process scheduler disabled")
	}

	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
