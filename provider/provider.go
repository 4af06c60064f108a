// Package provider defines the byte store behind fetchcache's cold tier.
//
// Entries swept out of a Cache for inactivity are demoted to a Provider and
// promoted back on the next Ensure. Implementations must be byte-for-byte
// transparent: Get returns exactly the []byte previously passed to Set.
//
// The keyspace "single:<ns>:" is owned by fetchcache. Foreign values under
// that prefix fail wire validation and are deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Clear drops every key. Cache.Clear never calls it; it deletes only the
	// records that cache demoted.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
