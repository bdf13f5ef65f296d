// Package cache provides the byte-level storage behind deptree's packument
// and tree caches.
//
// A [Cache] stores opaque byte slices with an optional TTL. Callers own the
// encoding; this package never inspects values. Backends:
//
//   - [MemoryCache]: process-wide, the default for library use and tests
//   - [FileCache]: one JSON file per key, used by the CLI
//   - [RedisCache]: shared cache for multiple API server replicas
//   - [MongoCache]: shared cache with a server-side TTL index
//   - [NullCache]: stores nothing, used by --no-cache
//
// Keys are produced by a [Keyer] so that every backend sees the same layout.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
//
// Get reports a miss as (nil, false, nil); a non-nil error means the backend
// itself failed. A ttl of zero on Set means the entry never expires.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
