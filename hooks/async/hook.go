// Package asynchook moves hook delivery off the fetch path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    StartedEvery: 10, // sample: ~every 10th fetch start
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	users, _ := fetchcache.New[User](fetchcache.Options[User]{
//	    Namespace: "user",
//	    Hooks:     hooks, // or raw if you don't want async
//	    Defaults:  fetchcache.FetchOptions{EnableMetrics: true},
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	fc "github.com/unkn0wn-root/fetchcache"
)

// Hooks forwards events to inner on worker goroutines. When the queue is
// full, or after Close, events are dropped and counted.
type Hooks struct {
	inner fc.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ fc.Hooks = (*Hooks)(nil)

func New(inner fc.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = fc.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k string, bg bool) { h.try(func() { h.inner.FetchStarted(k, bg) }) }
func (h *Hooks) FetchSucceeded(k string, took time.Duration) {
	h.try(func() { h.inner.FetchSucceeded(k, took) })
}
func (h *Hooks) FetchFailed(k string, attempts int, err error) {
	h.try(func() { h.inner.FetchFailed(k, attempts, err) })
}
func (h *Hooks) FetchDropped(k string) { h.try(func() { h.inner.FetchDropped(k) }) }
func (h *Hooks) RetryScheduled(k string, attempt int, delay time.Duration) {
	h.try(func() { h.inner.RetryScheduled(k, attempt, delay) })
}
func (h *Hooks) OptimisticRolledBack(k string, err error) {
	h.try(func() { h.inner.OptimisticRolledBack(k, err) })
}
func (h *Hooks) Evicted(k string, demoted bool) { h.try(func() { h.inner.Evicted(k, demoted) }) }
func (h *Hooks) ColdHit(k string)               { h.try(func() { h.inner.ColdHit(k) }) }
func (h *Hooks) ColdCorrupt(k string, err error) {
	h.try(func() { h.inner.ColdCorrupt(k, err) })
}
