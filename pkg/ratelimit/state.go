// Package ratelimit gates real fan-out runs: at most one per hour, and none
// when the upstream change id has not moved since the last run.
// State lives in a kv.Store so concurrent invocations share it.
package ratelimit

import (
	"time"
)

// Store keys for gate state.
const (
	// KeyRateLimit holds the acquisition timestamp of the hourly lock.
	KeyRateLimit = "pinger:rate_limit"

	// KeyLastChange holds the change id recorded after the last real run.
	KeyLastChange = "pinger:last_change_id"
)

// LockTTL is how long a real run blocks further real runs.
const LockTTL = time.Hour

// LockState describes the hourly lock as seen in the store.
type LockState struct {
	// Locked is true when the lock key exists. Its value is informational only.
	Locked bool `json:"locked"`

	// AcquiredAt is parsed from the lock value; zero when unparsable or unlocked.
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
}

// ExpiresAt returns when the lock lapses, or the zero time if unknown.
func (s *LockState) ExpiresAt() time.Time {
	if !s.Locked || s.AcquiredAt.IsZero() {
		return time.Time{}
	}
	return s.AcquiredAt.Add(LockTTL)
}

// TimeUntilUnlock returns the remaining lock duration relative to now.
// Returns 0 when unlocked, expired, or the acquisition time is unknown.
func (s *LockState) TimeUntilUnlock(now time.Time) time.Duration {
	exp := s.ExpiresAt()
	if exp.IsZero() {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}

// formatLockValue encodes the acquisition time stored under KeyRateLimit.
func formatLockValue(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseLockValue decodes a lock value; foreign values yield the zero time.
func parseLockValue(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
