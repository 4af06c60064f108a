package fetchcache

import (
	"errors"
	"time"

	"github.com/unkn0wn-root/fetchcache/internal/wire"
)

func (c *cache[V]) sweepLoop() {
	defer c.closeWg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

type eviction struct {
	storageKey string
	demoted    bool
	metrics    bool
}

// sweep removes entries idle for longer than their CacheTime. Entries with a
// request in flight or an optimistic overlay are kept. Returns how many
// entries were removed.
func (c *cache[V]) sweep() int {
	now := c.now()
	var out []eviction

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	for _, key := range c.store.Keys() {
		e, ok := c.store.Get(key)
		if !ok || e.cacheTime <= 0 || e.Fetching() || e.Optimistic != nil {
			continue
		}
		if now.Sub(e.touched) < e.cacheTime {
			continue
		}
		c.store.Delete(key)
		sk := c.storageKey(key)
		out = append(out, eviction{storageKey: sk, demoted: c.demoteLocked(sk, e), metrics: e.metrics})
	}
	c.mu.Unlock()

	for _, ev := range out {
		if ev.metrics {
			c.hooks.Evicted(ev.storageKey, ev.demoted)
		}
	}
	if len(out) > 0 {
		c.log.Debug("swept inactive entries", Fields{"ns": c.ns, "count": len(out)})
		c.bus.Notify()
	}
	return len(out)
}

// demoteLocked writes e's data to the cold tier.
func (c *cache[V]) demoteLocked(storageKey string, e Entry[V]) bool {
	if c.cold == nil || !e.HasData {
		return false
	}
	payload, err := c.codec.Encode(e.Data)
	if err != nil {
		c.log.Warn("cold tier encode failed", Fields{"key": storageKey, "err": err})
		return false
	}
	rec := wire.EncodeRecord(e.UpdatedAt.UnixMilli(), payload)
	ok, err := c.cold.Set(c.ctx, storageKey, rec, c.computeSetCost(storageKey, rec), c.coldTTL)
	if err != nil {
		c.log.Warn("cold tier write failed", Fields{"key": storageKey, "err": err})
		return false
	}
	if !ok {
		c.log.Debug("cold tier rejected write (pressure)", Fields{"key": storageKey})
		return false
	}
	c.demoted[storageKey] = struct{}{}
	return true
}

// promoteLocked moves key's cold record back into the store as a Success
// entry carrying its original timestamp, so staleness still applies.
// Corrupt records are deleted.
func (c *cache[V]) promoteLocked(key string, o FetchOptions) (Entry[V], bool) {
	var zero Entry[V]
	if c.cold == nil {
		return zero, false
	}
	sk := c.storageKey(key)
	raw, hit, err := c.cold.Get(c.ctx, sk)
	if err != nil {
		c.log.Warn("cold tier read failed", Fields{"key": sk, "err": err})
		return zero, false
	}
	if !hit {
		return zero, false
	}

	ts, payload, err := wire.DecodeRecord(raw)
	var v V
	if err == nil {
		v, err = c.codec.Decode(payload)
	}
	delete(c.demoted, sk)
	if derr := c.cold.Del(c.ctx, sk); derr != nil {
		c.log.Warn("cold tier delete failed", Fields{"key": sk, "err": derr})
	}
	if err != nil {
		c.log.Warn("corrupt cold record deleted", Fields{"key": sk, "err": err})
		if o.EnableMetrics {
			c.hooks.ColdCorrupt(sk, err)
		}
		return zero, false
	}

	e := Entry[V]{
		Status:    StatusSuccess,
		Data:      v,
		HasData:   true,
		UpdatedAt: time.UnixMilli(ts),
		touched:   c.now(),
		cacheTime: o.CacheTime,
		metrics:   o.EnableMetrics,
	}
	c.store.Set(key, e)
	if o.EnableMetrics {
		c.hooks.ColdHit(sk)
	}
	return e, true
}

// clearColdLocked deletes the records this cache demoted. Other namespaces
// sharing the provider are left alone.
func (c *cache[V]) clearColdLocked() error {
	var errs []error
	for sk := range c.demoted {
		if err := c.cold.Del(c.ctx, sk); err != nil {
			errs = append(errs, &ColdTierError{Key: sk, Op: "del", Err: err})
			continue
		}
		delete(c.demoted, sk)
	}
	return errors.Join(errs...)
}
