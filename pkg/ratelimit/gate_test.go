package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/rs/zerolog"
)

func newTestGate(t *testing.T) (*Gate, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewGate(store, logger), store
}

// failingStore returns err from every operation.
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStore) Set(context.Context, string, string, time.Duration) error {
	return f.err
}
func (f failingStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }
func (f failingStore) Close() error               { return nil }

func TestGate_CheckRateLimit(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()

	locked, err := gate.CheckRateLimit(ctx)
	if err != nil || locked {
		t.Fatalf("CheckRateLimit() on empty store = %v, %v; want false", locked, err)
	}

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	locked, err = gate.CheckRateLimit(ctx)
	if err != nil || !locked {
		t.Fatalf("CheckRateLimit() after Acquire = %v, %v; want true", locked, err)
	}

	if ttl, ok := store.TTL(KeyRateLimit); !ok || ttl <= 59*time.Minute || ttl > LockTTL {
		t.Errorf("lock TTL = %v, want about %v", ttl, LockTTL)
	}
}

func TestGate_CheckRateLimit_AnyValueLocks(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()

	_ = store.Set(ctx, KeyRateLimit, "not-a-timestamp", LockTTL)

	locked, err := gate.CheckRateLimit(ctx)
	if err != nil || !locked {
		t.Errorf("CheckRateLimit() with foreign value = %v, %v; want true", locked, err)
	}
	state, _ := gate.State(ctx)
	if !state.AcquiredAt.IsZero() {
		t.Errorf("AcquiredAt = %v, want zero for foreign value", state.AcquiredAt)
	}
}

func TestGate_LockExpires(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store.SetClock(clock)
	gate.now = clock

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	state, _ := gate.State(ctx)
	if !state.AcquiredAt.Equal(now) {
		t.Errorf("AcquiredAt = %v, want %v", state.AcquiredAt, now)
	}

	now = now.Add(LockTTL + time.Second)
	locked, err := gate.CheckRateLimit(ctx)
	if err != nil || locked {
		t.Errorf("CheckRateLimit() after TTL = %v, %v; want false", locked, err)
	}
}

func TestGate_TryAcquire(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	ok, err := gate.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryAcquire() = %v, %v; want true", ok, err)
	}
	ok, err = gate.TryAcquire(ctx)
	if err != nil || ok {
		t.Fatalf("second TryAcquire() = %v, %v; want false", ok, err)
	}
}

func TestGate_TryAcquire_Concurrent(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	const racers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := gate.TryAcquire(ctx)
			if err != nil {
				t.Errorf("TryAcquire() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestGate_ChangeTracking(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		recorded  string
		candidate string
		want      bool
	}{
		{name: "nothing recorded", recorded: "", candidate: "abc123", want: true},
		{name: "same id", recorded: "abc123", candidate: "abc123", want: false},
		{name: "different id", recorded: "abc123", candidate: "def456", want: true},
		{name: "empty candidate", recorded: "abc123", candidate: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.recorded != "" {
				if err := gate.RecordChange(ctx, tt.recorded); err != nil {
					t.Fatalf("RecordChange() error = %v", err)
				}
			}
			got, err := gate.CheckChangeIsNew(ctx, tt.candidate)
			if err != nil {
				t.Fatalf("CheckChangeIsNew() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckChangeIsNew(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}

	if ttl, ok := store.TTL(KeyLastChange); !ok || ttl != 0 {
		t.Errorf("last change TTL = %v, %v; want no expiry", ttl, ok)
	}
}

func TestGate_StoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	gate := NewGate(failingStore{err: boom}, zerolog.Nop())
	ctx := context.Background()

	if _, err := gate.CheckRateLimit(ctx); !errors.Is(err, boom) {
		t.Errorf("CheckRateLimit() error = %v, want wrapped %v", err, boom)
	}
	if _, err := gate.TryAcquire(ctx); !errors.Is(err, boom) {
		t.Errorf("TryAcquire() error = %v, want wrapped %v", err, boom)
	}
	if err := gate.Acquire(ctx); !errors.Is(err, boom) {
		t.Errorf("Acquire() error = %v, want wrapped %v", err, boom)
	}
	if _, err := gate.CheckChangeIsNew(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("CheckChangeIsNew() error = %v, want wrapped %v", err, boom)
	}
	if err := gate.RecordChange(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("RecordChange() error = %v, want wrapped %v", err, boom)
	}
}
