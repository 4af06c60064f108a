package fetchcache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/fetchcache/retry"
)

// startLocked begins a request for key, superseding any in-flight one, and
// moves the entry to Loading or Refetching.
func (c *cache[V]) startLocked(key string, e Entry[V], background bool, o FetchOptions) (*Token, bool) {
	tok, err := c.reqs.Begin(c.ctx, c.storageKey(key))
	if err != nil {
		c.log.Error("begin request failed", Fields{"ns": c.ns, "key": key, "err": err})
		return nil, false
	}
	if background && e.HasData {
		e.Status = StatusRefetching
	} else {
		e.Status = StatusLoading
	}
	e.RetryCount = 0
	e.inflight = tok.Gen()
	e.touched = c.now()
	e.cacheTime = o.CacheTime
	e.metrics = o.EnableMetrics
	c.store.Set(key, e)
	return tok, true
}

// launch notifies the transition and runs the request on its own goroutine.
// The caller has released mu.
func (c *cache[V]) launch(tok *Token, key string, fn FetchFunc[V], o FetchOptions, background bool, p retry.Policy) {
	c.bus.Notify()
	if o.EnableMetrics {
		c.hooks.FetchStarted(tok.Key(), background)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Close raced the launch and already cancelled tok.
		return
	}
	c.spawn(func() { c.run(tok, key, fn, o, p) })
}

func (c *cache[V]) run(tok *Token, key string, fn FetchFunc[V], o FetchOptions, p retry.Policy) {
	start := c.now()
	failures := 0
	p = observeAttempts(p, &failures, func(attempt int, delay time.Duration) {
		c.attemptFailed(tok, key, attempt, delay, o)
	})

	v, err := retry.Do(tok.Context(), p, func(ctx context.Context) (V, error) {
		return safeFetch(ctx, fn)
	})
	c.finish(tok, key, v, err, failures, c.now().Sub(start), o)
}

// observeAttempts wraps p so every failed attempt is counted into failures
// and every attempt followed by another one is reported to onRetry.
func observeAttempts(p retry.Policy, failures *int, onRetry func(attempt int, delay time.Duration)) retry.Policy {
	user := p.OnAttemptError
	p.OnAttemptError = func(err error, attempt int) {
		*failures = attempt
		if user != nil {
			user(err, attempt)
		}
		if p.Exhausted(attempt) || (p.Retryable != nil && !p.Retryable(err)) {
			return
		}
		onRetry(attempt, p.Delay(attempt))
	}
	return p
}

// attemptFailed publishes the running failure count between attempts.
func (c *cache[V]) attemptFailed(tok *Token, key string, attempt int, delay time.Duration, o FetchOptions) {
	c.mu.Lock()
	e, ok := c.store.Get(key)
	if !ok || !c.reqs.Current(tok) {
		c.mu.Unlock()
		return
	}
	e.RetryCount = attempt
	c.store.Set(key, e)
	c.mu.Unlock()

	c.log.Debug("fetch attempt failed, retrying", Fields{"key": key, "attempt": attempt, "delay": delay})
	if o.EnableMetrics {
		c.hooks.RetryScheduled(tok.Key(), attempt, delay)
	}
	c.bus.Notify()
}

// finish applies a completed request. A superseded or cancelled request
// writes nothing and notifies nobody.
func (c *cache[V]) finish(tok *Token, key string, v V, err error, failures int, took time.Duration, o FetchOptions) {
	cancelled := c.reqs.IsCancelled(tok)

	c.mu.Lock()
	current := c.reqs.Complete(tok)
	e, ok := c.store.Get(key)
	if !current || cancelled || !ok {
		c.mu.Unlock()
		c.log.Debug("fetch result dropped", Fields{"key": key, "gen": tok.Gen()})
		if o.EnableMetrics {
			c.hooks.FetchDropped(tok.Key())
		}
		return
	}

	now := c.now()
	e.inflight = 0
	e.touched = now
	if err == nil {
		e.Status = StatusSuccess
		e.Data, e.HasData = v, true
		e.Err = nil
		e.UpdatedAt = now
	} else {
		e.Err = err
		e.RetryCount = max(failures, 1)
		if e.HasData && o.keepsDataOnError() {
			e.Status = StatusSuccess
		} else {
			e.Status = StatusError
		}
	}
	c.store.Set(key, e)
	c.mu.Unlock()

	if err == nil {
		if o.EnableMetrics {
			c.hooks.FetchSucceeded(tok.Key(), took)
		}
	} else {
		c.log.Warn("fetch failed", Fields{"ns": c.ns, "key": key, "attempts": e.RetryCount, "err": err})
		if o.EnableMetrics {
			c.hooks.FetchFailed(tok.Key(), e.RetryCount, err)
		}
		if o.OnError != nil {
			o.OnError(key, err)
		}
	}
	c.bus.Notify()
}

// safeFetch turns a panicking fetch into an error stored on the entry.
func safeFetch[V any](ctx context.Context, fn FetchFunc[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetchcache: fetch panicked: %v", r)
		}
	}()
	return fn(ctx)
}
