package fetchcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/fetchcache/codec"
	"github.com/unkn0wn-root/fetchcache/internal/keys"
	"github.com/unkn0wn-root/fetchcache/provider"
	"github.com/unkn0wn-root/fetchcache/retry"
)

const (
	defaultColdTTL = 10 * time.Minute
	defaultSweep   = time.Minute
)

type cache[V any] struct {
	*core

	store    *Store[Entry[V]]
	defaults FetchOptions

	cold           provider.Provider
	codec          codec.Codec[V]
	coldTTL        time.Duration
	computeSetCost SetCostFunc
	demoted        map[string]struct{} // storage keys this cache wrote to cold

	// retention sweeper
	sweepInterval time.Duration
	ticker        *time.Ticker
	stopCh        chan struct{}
	closeWg       sync.WaitGroup
	closeOnce     sync.Once
	closeErr      error
}

var _ Cache[struct{}] = (*cache[struct{}])(nil)

func newCache[V any](opts Options[V]) (*cache[V], error) {
	co, err := newCore(opts.Namespace, opts.Logger, opts.Hooks, opts.Bus, opts.GenStore, opts.Clock)
	if err != nil {
		return nil, err
	}
	c := &cache[V]{
		core:     co,
		store:    NewStore[Entry[V]](),
		defaults: opts.Defaults,
		demoted:  make(map[string]struct{}),
	}
	if opts.ColdTier != nil && opts.Codec != nil {
		c.cold = opts.ColdTier
		c.codec = opts.Codec
	} else if opts.ColdTier != nil || opts.Codec != nil {
		c.log.Warn("cold tier disabled: both ColdTier and Codec are required", Fields{"ns": c.ns})
	}
	c.coldTTL = coalesce(opts.ColdTTL, defaultColdTTL)
	c.computeSetCost = opts.ComputeSetCost
	if c.computeSetCost == nil {
		c.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	c.sweepInterval = coalesce(opts.SweepInterval, defaultSweep)
	if c.sweepInterval > 0 {
		c.ticker = time.NewTicker(c.sweepInterval)
		c.stopCh = make(chan struct{})
		c.closeWg.Add(1)
		go c.sweepLoop()
	}
	return c, nil
}

func (c *cache[V]) storageKey(key string) string { return keys.Single(c.ns, key) }

func (c *cache[V]) options(opts []Option) FetchOptions {
	return resolveOptions(c.defaults, opts)
}

func (c *cache[V]) Ensure(key string, fn FetchFunc[V], opts ...Option) bool {
	o := c.options(opts)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e, ok, promoted := c.lookupLocked(key, o)
	if ok && e.Status != StatusIdle {
		c.touchLocked(key, e)
		c.mu.Unlock()
		if promoted {
			c.bus.Notify()
		}
		return false
	}
	tok, started := c.startLocked(key, e, false, o)
	c.mu.Unlock()

	if started {
		c.launch(tok, key, fn, o, false, o.RetryPolicy())
	}
	return started
}

func (c *cache[V]) Query(key string, fn FetchFunc[V], opts ...Option) View[V] {
	o := c.options(opts)

	c.mu.Lock()
	if c.closed {
		e, _ := c.store.Get(key)
		c.mu.Unlock()
		return viewOf(key, e)
	}
	var (
		tok        *Token
		started    bool
		background bool
	)
	e, ok, promoted := c.lookupLocked(key, o)
	switch {
	case !ok || e.Status == StatusIdle:
		tok, started = c.startLocked(key, e, false, o)
	case e.Fetching() || e.Status == StatusError:
		c.touchLocked(key, e)
	case c.revalidates(e, o):
		background = true
		tok, started = c.startLocked(key, e, true, o)
	default:
		c.touchLocked(key, e)
	}
	e, _ = c.store.Get(key)
	c.mu.Unlock()

	if started {
		c.launch(tok, key, fn, o, background, o.RetryPolicy())
	} else if promoted {
		c.bus.Notify()
	}
	return viewOf(key, e)
}

// revalidates decides whether Query refreshes a settled entry with data.
func (c *cache[V]) revalidates(e Entry[V], o FetchOptions) bool {
	if !e.HasData || o.Strategy == StrategyCacheFirst {
		return false
	}
	return Stale(e.UpdatedAt, o.EffectiveStaleTime(), c.now())
}

func (c *cache[V]) Refetch(key string, fn FetchFunc[V], background bool, opts ...Option) bool {
	o := c.options(opts)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e, _, promoted := c.lookupLocked(key, o)
	tok, started := c.startLocked(key, e, background, o)
	c.mu.Unlock()

	if started {
		c.launch(tok, key, fn, o, background, o.RetryPolicy())
	} else if promoted {
		c.bus.Notify()
	}
	return started
}

func (c *cache[V]) RetryWithBackoff(key string, fn FetchFunc[V], p retry.Policy) bool {
	o := c.options(nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e, _, promoted := c.lookupLocked(key, o)
	tok, started := c.startLocked(key, e, true, o)
	c.mu.Unlock()

	if started {
		c.launch(tok, key, fn, o, true, p)
	} else if promoted {
		c.bus.Notify()
	}
	return started
}

func (c *cache[V]) Cancel(key string) bool {
	c.mu.Lock()
	if !c.reqs.Cancel(c.storageKey(key)) {
		c.mu.Unlock()
		return false
	}
	if e, ok := c.store.Get(key); ok {
		e.inflight = 0
		if e.HasData {
			e.Status = StatusSuccess
		} else {
			e.Status = StatusIdle
		}
		c.store.Set(key, e)
	}
	c.mu.Unlock()

	c.log.Debug("request cancelled", Fields{"ns": c.ns, "key": key})
	c.bus.Notify()
	return true
}

func (c *cache[V]) Invalidate(key string) error {
	sk := c.storageKey(key)

	c.mu.Lock()
	c.reqs.Cancel(sk)
	c.store.Delete(key)
	var err error
	if c.cold != nil {
		delete(c.demoted, sk)
		if derr := c.cold.Del(c.ctx, sk); derr != nil {
			err = &ColdTierError{Key: sk, Op: "del", Err: derr}
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("invalidate: cold tier delete failed", Fields{"key": key, "err": err})
	} else {
		c.log.Debug("invalidated key", Fields{"ns": c.ns, "key": key})
	}
	c.bus.Notify()
	return err
}

func (c *cache[V]) Clear() error {
	c.mu.Lock()
	c.reqs.CancelAll()
	c.store.Clear()
	var err error
	if c.cold != nil {
		err = c.clearColdLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("clear: cold tier clear failed", Fields{"ns": c.ns, "err": err})
	}
	c.bus.Notify()
	return err
}

func (c *cache[V]) SetData(key string, v V) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e, _ := c.store.Get(key)
	now := c.now()
	e.Data, e.HasData = v, true
	e.Err = nil
	e.UpdatedAt = now
	e.touched = now
	if e.Fetching() {
		e.Status = StatusRefetching
	} else {
		e.Status = StatusSuccess
	}
	c.store.Set(key, e)
	c.mu.Unlock()

	c.bus.Notify()
}

func (c *cache[V]) Get(key string) View[V] {
	e, _ := c.store.Get(key)
	return viewOf(key, e)
}

func (c *cache[V]) Entry(key string) (Entry[V], bool) {
	return c.store.Get(key)
}

// IsStale reports whether key's data is older than staleTime. Absent keys
// are stale.
func (c *cache[V]) IsStale(key string, staleTime time.Duration) bool {
	e, _ := c.store.Get(key)
	return Stale(e.UpdatedAt, staleTime, c.now())
}

func (c *cache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.closeWg.Wait()
			c.ticker.Stop()
		}
		err := c.shutdown(ctx)
		if c.cold != nil {
			err = errors.Join(err, c.cold.Close(ctx))
		}
		c.closeErr = err
	})
	return c.closeErr
}

// lookupLocked returns the stored entry, promoting it from the cold tier
// when absent. promoted reports a store write the caller must notify.
func (c *cache[V]) lookupLocked(key string, o FetchOptions) (e Entry[V], ok, promoted bool) {
	if e, ok = c.store.Get(key); ok {
		return e, true, false
	}
	e, ok = c.promoteLocked(key, o)
	return e, ok, ok
}

func (c *cache[V]) touchLocked(key string, e Entry[V]) {
	e.touched = c.now()
	c.store.Set(key, e)
}
