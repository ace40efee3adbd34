// Package kv provides the key-value persistence used for cross-invocation state.
//
// The pinger keeps only a handful of keys: the hourly rate-limit marker, the
// last seen change id, the endpoint list and the last result snapshots. Every
// backend implements the same Store contract:
//
//	store := kv.NewRedisStore(redisClient)
//
//	// plain read; kv.ErrNotFound when absent or expired
//	value, err := store.Get(ctx, "pinger:last_change_id")
//
//	// write with expiry (0 = keep forever)
//	err = store.Set(ctx, "pinger:last_dry", payload, 24*time.Hour)
//
//	// atomic create-if-absent, the basis of the rate lock
//	acquired, err := store.SetNX(ctx, "pinger:rate_limit", now, time.Hour)
//
// # Backends
//
//   - Redis: SET / SET NX EX (default)
//   - DynamoDB: PutItem with a condition expression; expiry kept in a TTL attribute
//   - SQLite: upsert guarded by a WHERE clause on the expiry column
//   - Memory: process-local map for tests and single-process development
//
// SetNX is a true compare-and-set on every backend: an expired key counts as absent.
//
// # Metrics
//
//   - pinger_kv_errors_total{backend, operation} - Store operation errors
package kv
