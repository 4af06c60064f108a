package fetchcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/fetchcache/codec"
	gen "github.com/unkn0wn-root/fetchcache/genstore"
	pr "github.com/unkn0wn-root/fetchcache/provider"
	"github.com/unkn0wn-root/fetchcache/retry"
)

// FetchFunc loads the value for a key. It must honour ctx: the context is
// cancelled when the request is superseded, cancelled or the cache closes.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// MutateFunc performs the server side of an optimistic update.
type MutateFunc func(ctx context.Context) error

// SetCostFunc computes the cold-tier cost of a demoted record.
type SetCostFunc func(storageKey string, raw []byte) int64

// Cache is the keyed fetch orchestrator. Methods starting work return
// whether a request was started; results are observed through Get after a
// Subscribe notification.
type Cache[V any] interface {
	// Ensure starts a fetch iff the key is absent or Idle.
	Ensure(key string, fn FetchFunc[V], opts ...Option) bool
	// Query is Ensure plus strategy-driven revalidation. It never supersedes
	// a request already in flight and returns the current view.
	Query(key string, fn FetchFunc[V], opts ...Option) View[V]
	// Refetch always starts a fetch, superseding any in-flight one. With
	// background and existing data the entry moves to Refetching, otherwise
	// to Loading.
	Refetch(key string, fn FetchFunc[V], background bool, opts ...Option) bool
	// RetryWithBackoff starts a background fetch driven by p.
	RetryWithBackoff(key string, fn FetchFunc[V], p retry.Policy) bool
	// Cancel cancels the in-flight request and reverts the status.
	Cancel(key string) bool

	Invalidate(key string) error
	Clear() error
	// SetData writes ground truth as a successful result.
	SetData(key string, v V)
	// ApplyOptimistic overlays patch(base) until mutate resolves. On failure
	// rollback receives the error. The channel yields mutate's result.
	ApplyOptimistic(key string, base V, patch func(V) V, mutate MutateFunc, rollback func(error), opts ...Option) <-chan error

	Get(key string) View[V]
	Entry(key string) (Entry[V], bool)
	IsStale(key string, staleTime time.Duration) bool
	Subscribe(fn func()) (unsubscribe func())
	Close(context.Context) error
}

// Options tune a Cache. Only Namespace is required.
type Options[V any] struct {
	Namespace string // e.g. "user", "post"; must not contain ':'

	Logger   Logger       // nil => NopLogger
	Hooks    Hooks        // nil => NopHooks
	Bus      *Bus         // nil => private bus; share one to observe several caches
	GenStore gen.GenStore // nil => LocalGenStore owned by the cache

	// Defaults apply to every call before per-call Options.
	Defaults FetchOptions

	// Cold tier. Both ColdTier and Codec must be set to enable it.
	ColdTier       pr.Provider
	Codec          c.Codec[V]
	ColdTTL        time.Duration // 0 => 10m
	ComputeSetCost SetCostFunc   // default len(raw)

	// SweepInterval paces the retention sweeper. 0 => 1m, < 0 disables it.
	SweepInterval time.Duration

	// Clock returns the current time. nil => time.Now.
	Clock func() time.Time
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
