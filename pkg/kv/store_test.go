package kv

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
)

// testClock is a movable time source shared by a store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// backend bundles a store with a way to move its notion of time forward.
type backend struct {
	store   Store
	advance func(time.Duration)
}

func backends(t *testing.T) map[string]func(t *testing.T) backend {
	t.Helper()
	return map[string]func(t *testing.T) backend{
		BackendMemory: func(t *testing.T) backend {
			clock := newTestClock()
			s := NewMemoryStore()
			s.SetClock(clock.Now)
			return backend{store: s, advance: clock.Advance}
		},
		BackendRedis: func(t *testing.T) backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client)
			t.Cleanup(func() { s.Close() })
			return backend{store: s, advance: mr.FastForward}
		},
		BackendSQLite: func(t *testing.T) backend {
			clock := newTestClock()
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			s.now = clock.Now
			t.Cleanup(func() { s.Close() })
			return backend{store: s, advance: clock.Advance}
		},
		BackendDynamoDB: func(t *testing.T) backend {
			clock := newTestClock()
			s := NewDynamoStore(newFakeDynamo(), "pinger")
			s.now = clock.Now
			return backend{store: s, advance: clock.Advance}
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("missing key", func(t *testing.T) {
				b := open(t)
				if _, err := b.store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get() error = %v, want ErrNotFound", err)
				}
			})

			t.Run("set and get", func(t *testing.T) {
				b := open(t)
				if err := b.store.Set(ctx, "k", "v1", 0); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
				if err := b.store.Set(ctx, "k", "v2", 0); err != nil {
					t.Fatalf("Set() overwrite error = %v", err)
				}
				got, err := b.store.Get(ctx, "k")
				if err != nil || got != "v2" {
					t.Errorf("Get() = %q, %v; want v2", got, err)
				}
			})

			t.Run("ttl expiry", func(t *testing.T) {
				b := open(t)
				if err := b.store.Set(ctx, "k", "v", time.Hour); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
				b.advance(59 * time.Minute)
				if _, err := b.store.Get(ctx, "k"); err != nil {
					t.Errorf("Get() before expiry error = %v", err)
				}
				b.advance(2 * time.Minute)
				if _, err := b.store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
				}
			})

			t.Run("setnx", func(t *testing.T) {
				b := open(t)
				ok, err := b.store.SetNX(ctx, "lock", "first", time.Hour)
				if err != nil || !ok {
					t.Fatalf("first SetNX() = %v, %v; want true", ok, err)
				}
				ok, err = b.store.SetNX(ctx, "lock", "second", time.Hour)
				if err != nil || ok {
					t.Fatalf("second SetNX() = %v, %v; want false", ok, err)
				}
				if got, _ := b.store.Get(ctx, "lock"); got != "first" {
					t.Errorf("value after refused SetNX = %q, want first", got)
				}

				b.advance(61 * time.Minute)
				ok, err = b.store.SetNX(ctx, "lock", "third", time.Hour)
				if err != nil || !ok {
					t.Fatalf("SetNX() after expiry = %v, %v; want true", ok, err)
				}
				if got, _ := b.store.Get(ctx, "lock"); got != "third" {
					t.Errorf("value after expiry SetNX = %q, want third", got)
				}
			})

			t.Run("setnx on persistent key", func(t *testing.T) {
				b := open(t)
				if err := b.store.Set(ctx, "forever", "v", 0); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
				b.advance(48 * time.Hour)
				ok, err := b.store.SetNX(ctx, "forever", "other", time.Hour)
				if err != nil || ok {
					t.Errorf("SetNX() on persistent key = %v, %v; want false", ok, err)
				}
			})

			t.Run("ping", func(t *testing.T) {
				b := open(t)
				if err := b.store.Ping(ctx); err != nil {
					t.Errorf("Ping() error = %v", err)
				}
			})
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type record struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}

	in := record{Name: "endpoints", Items: []string{"a", "b"}}
	if err := SetJSON(ctx, s, "rec", in, 0); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var out record
	if err := GetJSON(ctx, s, "rec", &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Name != in.Name || len(out.Items) != 2 {
		t.Errorf("GetJSON() = %+v, want %+v", out, in)
	}

	if err := GetJSON(ctx, s, "missing", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON(missing) error = %v, want ErrNotFound", err)
	}

	_ = s.Set(ctx, "broken", "{not json", 0)
	if err := GetJSON(ctx, s, "broken", &out); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("GetJSON(broken) error = %v, want ErrInvalidValue", err)
	}
}

func TestMemoryStore_Writes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Set(ctx, "a", "1", 0)
	_, _ = s.SetNX(ctx, "a", "2", 0)
	_, _ = s.SetNX(ctx, "b", "2", time.Minute)
	_, _ = s.Get(ctx, "a")

	if got := s.Writes(); got != 2 {
		t.Errorf("Writes() = %d, want 2", got)
	}
	if ttl, ok := s.TTL("b"); !ok || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL(b) = %v, %v", ttl, ok)
	}
	if ttl, ok := s.TTL("a"); !ok || ttl != 0 {
		t.Errorf("TTL(a) = %v, %v; want 0, true", ttl, ok)
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	s.Close()

	s, err = Open(ctx, Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "open.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	s.Close()

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Backend: BackendRedis, RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	s.Close()

	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Error("Open(etcd) should fail")
	}
}

// fakeDynamo is an in-memory DynamoAPI that understands the conditional put used by SetNX.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Key[attrKey].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Item[attrKey].(*types.AttributeValueMemberS).Value

	if in.ConditionExpression != nil {
		if existing, ok := f.items[key]; ok {
			now, _ := strconv.ParseInt(in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
			exp, hasExp := existing[attrExpiresAt].(*types.AttributeValueMemberN)
			expired := false
			if hasExp {
				at, _ := strconv.ParseInt(exp.Value, 10, 64)
				expired = at <= now
			}
			if !expired {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
			}
		}
	}

	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}
