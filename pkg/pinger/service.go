package pinger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/detector"
	"github.com/Sternrassler/update-pinger/pkg/fanout"
	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/Sternrassler/update-pinger/pkg/pagination"
	"github.com/Sternrassler/update-pinger/pkg/ratelimit"
	"github.com/Sternrassler/update-pinger/pkg/report"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
	"github.com/rs/zerolog"
)

// Record sources for status queries.
const (
	RecordLatest = "latest"
	RecordReal   = "real"
	RecordDry    = "dry"
)

// Service orchestrates manual and scheduled runs over a shared store.
type Service struct {
	store    kv.Store
	gate     *ratelimit.Gate
	detector detector.Detector
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a Service. det may be nil, in which case scheduled runs
// always skip with reason no-change-id.
func NewService(store kv.Store, det detector.Detector, config Config) *Service {
	logger := logging.NewLogger("pinger")
	return &Service{
		store:    store,
		gate:     ratelimit.NewGate(store, logging.NewLogger("ratelimit")),
		detector: det,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Gate returns the rate-limit gate shared by all runs of this service.
func (s *Service) Gate() *ratelimit.Gate {
	return s.gate
}

// Store returns the backing key-value store.
func (s *Service) Store() kv.Store {
	return s.store
}

// Run executes a manual invocation. The returned report is never nil; an
// error accompanies a store-error skip.
func (s *Service) Run(ctx context.Context, req Request) (*report.Report, error) {
	return s.run(ctx, req, TriggerManual, "")
}

// RunScheduled executes an unattended invocation: change detection, then the
// real-run path. It never returns an error; failures become skip reasons.
func (s *Service) RunScheduled(ctx context.Context) *report.Report {
	logger := s.logger.With().Str("trigger", TriggerScheduled).Logger()

	if s.detector == nil {
		logger.Debug().Msg("No change detector configured")
		return s.skip(TriggerScheduled, report.ReasonNoChangeID, false)
	}

	changeID, err := s.detector.LatestChangeID(ctx)
	if err != nil {
		metrics.SwallowedErrors.WithLabelValues(metrics.SourceDetector).Inc()
		logger.Warn().Err(err).Msg("Change detector failed, skipping scheduled run")
		return s.skip(TriggerScheduled, report.ReasonDetector, false)
	}
	if changeID == "" {
		logger.Info().Msg("No change id reported, skipping scheduled run")
		return s.skip(TriggerScheduled, report.ReasonNoChangeID, false)
	}

	isNew, err := s.gate.CheckChangeIsNew(ctx, changeID)
	if err != nil {
		metrics.SwallowedErrors.WithLabelValues(metrics.SourceDetector).Inc()
		logger.Warn().Err(err).Str("change_id", changeID).Msg("Failed to read last change id")
		return s.skip(TriggerScheduled, report.ReasonStore, false)
	}
	if !isNew {
		logger.Info().Str("change_id", changeID).Msg("Change id unchanged, skipping scheduled run")
		return s.skip(TriggerScheduled, report.ReasonUnchanged, false)
	}

	rep, err := s.run(ctx, Request{Only: report.FilterAll}, TriggerScheduled, changeID)
	if err != nil {
		logger.Warn().Err(err).Msg("Scheduled run aborted")
		return rep
	}

	if rep.Done() {
		if err := s.gate.RecordChange(ctx, changeID); err != nil {
			metrics.SwallowedErrors.WithLabelValues(metrics.SourcePersist).Inc()
			logger.Warn().Err(err).Str("change_id", changeID).Msg("Failed to record change id")
		}
	}
	return rep
}

func (s *Service) run(ctx context.Context, req Request, trigger, changeID string) (*report.Report, error) {
	started := s.now()
	logger := s.logger.With().
		Str("trigger", trigger).
		Bool("dry_run", req.DryRun).
		Int("cursor", req.Cursor).
		Logger()

	// RATE_CHECK
	if !req.DryRun {
		locked, err := s.gate.CheckRateLimit(ctx)
		if err != nil {
			rep := s.skip(trigger, report.ReasonStore, false)
			return rep, fmt.Errorf("rate check: %w", err)
		}
		if locked {
			return s.skip(trigger, report.ReasonRateLimited, false), nil
		}
	}

	// RESOLVE_INPUTS
	site := resolveSite(req, s.config.Site)
	endpoints, source := s.ResolveEndpoints(ctx, req.Endpoints)
	endpoints = pagination.Limit(endpoints, req.Limit)

	// PLAN
	budget := pagination.ClampBudget(s.config.SubrequestBudget)
	batch := pagination.Plan(endpoints, budget, req.Cursor)
	if batch.Count() == 0 {
		logger.Info().Int("total", len(endpoints)).Msg("Nothing to ping")
		return s.skip(trigger, report.ReasonNoEndpoints, req.DryRun), nil
	}

	// DISPATCH
	if !req.DryRun {
		acquired, err := s.gate.TryAcquire(ctx)
		if err != nil {
			rep := s.skip(trigger, report.ReasonStore, false)
			return rep, fmt.Errorf("acquire lock: %w", err)
		}
		if !acquired {
			return s.skip(trigger, report.ReasonRateLimited, false), nil
		}
	}

	method, body := xmlrpc.EncodePing(site)
	fetchConfig := fanout.Config{
		Concurrency: s.config.Concurrency,
		Timeout:     s.config.Timeout,
		Verbose:     req.Verbose,
		UserAgent:   s.config.UserAgent,
	}
	if s.config.RunDeadline > 0 {
		fetchConfig.Deadline = started.Add(s.config.RunDeadline)
	}
	fetcher := fanout.NewBatchFetcher(fetchConfig)

	logger.Info().
		Str("method", method).
		Str("endpoint_source", source).
		Int("batch_start", batch.Start).
		Int("batch_end", batch.End).
		Int("total", len(endpoints)).
		Msg("Dispatching pings")

	outcomes := fetcher.FetchAll(ctx, batch.Slice, body)

	// AGGREGATE
	ok, fail := report.Tally(outcomes)
	rep := &report.Report{
		Status:  report.StatusDone,
		DryRun:  req.DryRun,
		Trigger: trigger,
		Method:  method,
		Site:    &site,
		Totals: &report.Totals{
			Total:      len(endpoints),
			BatchStart: batch.Start,
			BatchEnd:   batch.End,
			BatchCount: batch.Count(),
			OK:         ok,
			Fail:       fail,
		},
		Results:          outcomes,
		NextCursor:       batch.NextCursor,
		SubrequestBudget: budget,
		ConcurrencyUsed:  fetcher.Workers(batch.Count()),
		ChangeID:         changeID,
	}

	// PERSIST
	s.persist(ctx, rep)

	nextCursor := -1
	if rep.NextCursor != nil {
		nextCursor = *rep.NextCursor
	}
	logger.Info().
		Int("ok", ok).
		Int("fail", fail).
		Int("next_cursor", nextCursor).
		Dur("duration", s.now().Sub(started)).
		Msg("Run complete")

	runsTotal.WithLabelValues(trigger, string(report.StatusDone)).Inc()

	filtered := *rep
	filtered.Results = req.Only.Apply(outcomes)
	return &filtered, nil
}

// persist writes the unfiltered report to exactly one record: the durable
// result for real runs, the dry snapshot for dry runs.
func (s *Service) persist(ctx context.Context, rep *report.Report) {
	key, ttl := KeyLastResult, ResultTTL
	if rep.DryRun {
		key, ttl = KeyLastDry, DryTTL
	}

	rec := report.Record{Time: s.now().UTC(), Result: rep}
	if err := kv.SetJSON(ctx, s.store, key, rec, ttl); err != nil {
		metrics.SwallowedErrors.WithLabelValues(metrics.SourcePersist).Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist run result")
	}
}

func (s *Service) skip(trigger, reason string, dryRun bool) *report.Report {
	runsTotal.WithLabelValues(trigger, reason).Inc()
	s.logger.Info().
		Str("trigger", trigger).
		Str("reason", reason).
		Bool("dry_run", dryRun).
		Msg("Run skipped")
	return report.Skipped(reason, dryRun)
}

// LastRecord returns the persisted record for source (latest, real or dry),
// or nil when none exists. Unknown sources are treated as latest.
func (s *Service) LastRecord(ctx context.Context, source string) (*report.Record, error) {
	switch source {
	case RecordReal:
		return s.readRecord(ctx, KeyLastResult)
	case RecordDry:
		return s.readRecord(ctx, KeyLastDry)
	}

	realRec, err := s.readRecord(ctx, KeyLastResult)
	if err != nil {
		return nil, err
	}
	dryRec, err := s.readRecord(ctx, KeyLastDry)
	if err != nil {
		return nil, err
	}
	return report.Newer(realRec, dryRec), nil
}

func (s *Service) readRecord(ctx context.Context, key string) (*report.Record, error) {
	var rec report.Record
	err := kv.GetJSON(ctx, s.store, key, &rec)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return &rec, nil
}

// ManualRequest is the persisted copy of the last manual trigger.
type ManualRequest struct {
	Time time.Time       `json:"time"`
	Body json.RawMessage `json:"body,omitempty"`
	Raw  string          `json:"raw,omitempty"`
}

// RecordManualRequest stores the raw body of a manual trigger for inspection.
// Valid JSON is kept as-is, anything else as a string. Failures are logged only.
func (s *Service) RecordManualRequest(ctx context.Context, body []byte) {
	rec := ManualRequest{Time: s.now().UTC()}
	if json.Valid(body) {
		rec.Body = json.RawMessage(body)
	} else if len(body) > 0 {
		rec.Raw = fanout.Truncate(string(body), 4096)
	}

	if err := kv.SetJSON(ctx, s.store, KeyLastManualRequest, rec, ManualRequestTTL); err != nil {
		metrics.SwallowedErrors.WithLabelValues(metrics.SourcePersist).Inc()
		s.logger.Warn().Err(err).Str("key", KeyLastManualRequest).Msg("Failed to record manual request")
	}
}
