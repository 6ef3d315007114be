// Package refcache caches read-only reference data (formations, programme
// info, category list) between upstream fetches.
package refcache

import (
	"context"
	"time"
)

// Cache stores JSON-serialisable values under string keys.
type Cache interface {
	// Get decodes the value under key into dst and reports whether it was found
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set stores v under key for ttl (0 means no expiry)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error

	// Delete removes keys
	Delete(ctx context.Context, keys ...string) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	Close() error
}
