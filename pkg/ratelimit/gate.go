package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for gate decisions.
var (
	lockAcquiredTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "pinger_lock_acquired_total",
		Help: "Total number of real runs that acquired the hourly lock",
	})

	lockContendedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "pinger_lock_contended_total",
		Help: "Total number of real runs refused because the hourly lock was held",
	})

	changeSkipsTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "pinger_change_skips_total",
		Help: "Total number of scheduled runs skipped because the change id was unchanged",
	})
)

// Gate enforces the hourly real-run lock and change-id deduplication.
type Gate struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewGate creates a gate over store.
func NewGate(store kv.Store, logger zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// State returns the current lock state.
func (g *Gate) State(ctx context.Context) (*LockState, error) {
	value, err := g.store.Get(ctx, KeyRateLimit)
	if errors.Is(err, kv.ErrNotFound) {
		return &LockState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit marker: %w", err)
	}
	return &LockState{Locked: true, AcquiredAt: parseLockValue(value)}, nil
}

// CheckRateLimit returns true when a real run must not start.
// Presence of the marker is what counts, not its value.
func (g *Gate) CheckRateLimit(ctx context.Context) (bool, error) {
	state, err := g.State(ctx)
	if err != nil {
		return false, err
	}
	if state.Locked {
		lockContendedTotal.Inc()
		g.logger.Info().
			Time("acquired_at", state.AcquiredAt).
			Dur("remaining", state.TimeUntilUnlock(g.now())).
			Msg("Real run rate-limited")
	}
	return state.Locked, nil
}

// Acquire writes the lock marker unconditionally.
func (g *Gate) Acquire(ctx context.Context) error {
	now := g.now()
	if err := g.store.Set(ctx, KeyRateLimit, formatLockValue(now), LockTTL); err != nil {
		return fmt.Errorf("write rate limit marker: %w", err)
	}
	lockAcquiredTotal.Inc()
	g.logger.Info().Time("acquired_at", now).Msg("Hourly lock acquired")
	return nil
}

// TryAcquire writes the lock marker only if none exists and reports whether it did.
// This is an atomic compare-and-set on every kv backend, so two racing
// invocations cannot both dispatch.
func (g *Gate) TryAcquire(ctx context.Context) (bool, error) {
	now := g.now()
	ok, err := g.store.SetNX(ctx, KeyRateLimit, formatLockValue(now), LockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire rate limit marker: %w", err)
	}
	if !ok {
		lockContendedTotal.Inc()
		g.logger.Info().Msg("Hourly lock taken by a concurrent run")
		return false, nil
	}
	lockAcquiredTotal.Inc()
	g.logger.Info().Time("acquired_at", now).Msg("Hourly lock acquired")
	return true, nil
}

// LastChange returns the recorded change id, or "" if none.
func (g *Gate) LastChange(ctx context.Context) (string, error) {
	value, err := g.store.Get(ctx, KeyLastChange)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last change id: %w", err)
	}
	return value, nil
}

// CheckChangeIsNew reports whether candidateID differs from the recorded marker.
// An empty candidate is never new.
func (g *Gate) CheckChangeIsNew(ctx context.Context, candidateID string) (bool, error) {
	if candidateID == "" {
		return false, nil
	}
	last, err := g.LastChange(ctx)
	if err != nil {
		return false, err
	}
	if last == candidateID {
		changeSkipsTotal.Inc()
		g.logger.Debug().Str("change_id", candidateID).Msg("Change id unchanged")
		return false, nil
	}
	return true, nil
}

// RecordChange overwrites the last-seen marker. It never expires.
func (g *Gate) RecordChange(ctx context.Context, id string) error {
	if err := g.store.Set(ctx, KeyLastChange, id, 0); err != nil {
		return fmt.Errorf("record change id: %w", err)
	}
	g.logger.Info().Str("change_id", id).Msg("Change id recorded")
	return nil
}
