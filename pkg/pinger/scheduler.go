package pinger

import (
	"context"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/report"
)

// RunEvery calls RunScheduled once per interval until ctx is done.
// A slow run delays the next tick instead of queuing several.
// onReport, if set, receives every report.
func (s *Service) RunEvery(ctx context.Context, interval time.Duration, onReport func(*report.Report)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			rep := s.RunScheduled(ctx)
			if onReport != nil {
				onReport(rep)
			}
		}
	}
}
