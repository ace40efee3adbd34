package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string
	RedisAddr   string
	DynamoTable string
	AWSRegion   string
	SQLitePath  string
}

// Open creates the store named by opts.Backend and verifies it is reachable.
func Open(ctx context.Context, opts Options) (Store, error) {
	var store Store
	switch opts.Backend {
	case BackendRedis, "":
		store = NewRedisStore(redis.NewClient(&redis.Options{Addr: opts.RedisAddr}))
	case BackendDynamoDB:
		client, err := NewDynamoClient(ctx, opts.AWSRegion)
		if err != nil {
			return nil, err
		}
		store = NewDynamoStore(client, opts.DynamoTable)
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	case BackendMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("store %s unreachable: %w", opts.Backend, err)
	}
	return store, nil
}
