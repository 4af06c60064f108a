package fetchcache

import (
	"fmt"

	"github.com/unkn0wn-root/fetchcache/internal/keys"
)

// ApplyOptimistic shows patch(base) for key until mutate resolves.
//
// Each call bumps the key's optimistic generation. When mutate resolves the
// overlay is cleared only if no newer call replaced it; the resolution never
// touches ground truth, so a late result cannot clobber fresher data. On
// failure rollback runs first and the entry never enters Error. Of opts
// only EnableMetrics applies.
func (c *cache[V]) ApplyOptimistic(key string, base V, patch func(V) V, mutate MutateFunc, rollback func(error), opts ...Option) <-chan error {
	done := make(chan error, 1)
	ovKey := keys.Optimistic(c.ns, key)
	metrics := c.options(opts).EnableMetrics

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done <- ErrClosed
		close(done)
		return done
	}
	gen, err := c.gens.Bump(c.ctx, ovKey)
	if err != nil {
		c.mu.Unlock()
		done <- fmt.Errorf("fetchcache: optimistic %q: %w", key, err)
		close(done)
		return done
	}
	e, _ := c.store.Get(key)
	overlay := patch(base)
	e.Optimistic = &overlay
	e.touched = c.now()
	c.store.Set(key, e)
	c.spawn(func() {
		err := mutate(c.ctx)
		if err != nil {
			if rollback != nil {
				rollback(err)
			}
			c.log.Debug("optimistic update rolled back", Fields{"key": key, "err": err})
			if metrics {
				c.hooks.OptimisticRolledBack(ovKey, err)
			}
		}

		c.mu.Lock()
		if cur, serr := c.gens.Snapshot(c.ctx, ovKey); serr == nil && cur == gen {
			if e, exists := c.store.Get(key); exists {
				e.Optimistic = nil
				c.store.Set(key, e)
			}
		}
		c.mu.Unlock()

		c.bus.Notify()
		done <- err
		close(done)
	})
	c.mu.Unlock()

	c.bus.Notify()
	return done
}
