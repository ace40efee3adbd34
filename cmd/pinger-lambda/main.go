// Command pinger-lambda runs one scheduled invocation per EventBridge event.
package main

import (
	"context"

	"github.com/Sternrassler/update-pinger/internal/config"
	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/pinger"
	"github.com/Sternrassler/update-pinger/pkg/report"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
)

// scheduledHandler never returns an error: a missed scheduled run is
// acceptable, a failed invocation would only trigger Lambda retries.
func scheduledHandler(svc *pinger.Service, logger zerolog.Logger) func(context.Context, events.CloudWatchEvent) (*report.Report, error) {
	return func(ctx context.Context, event events.CloudWatchEvent) (*report.Report, error) {
		logger.Info().
			Str("event_id", event.ID).
			Str("source", event.Source).
			Time("event_time", event.Time).
			Msg("Scheduled event received")

		rep := svc.RunScheduled(ctx)
		logger.Info().
			Str("status", string(rep.Status)).
			Str("reason", rep.Reason).
			Msg("Scheduled run finished")
		return rep, nil
	}
}

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

	ctx := context.Background()
	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}

	det, err := cfg.NewDetector()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create change detector")
	}

	svc := pinger.NewService(store, det, cfg.Pinger())
	lambda.Start(scheduledHandler(svc, logging.NewLogger("lambda")))
}
