package fetchcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/fetchcache/codec"
	pr "github.com/unkn0wn-root/fetchcache/provider"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ==============================
// Controllable fetches
// ==============================

type outcome[V any] struct {
	v   V
	err error
}

type pending[V any] struct {
	ctx  context.Context
	arg  any
	done chan outcome[V]
}

func (p *pending[V]) resolve(v V)      { p.done <- outcome[V]{v: v} }
func (p *pending[V]) reject(err error) { p.done <- outcome[V]{err: err} }
func (p *pending[V]) cancelled() bool  { return p.ctx.Err() != nil }

// fetcher records every call and blocks it until the test resolves it.
// Calls ignore their context so late results can be simulated.
type fetcher[V any] struct {
	mu    sync.Mutex
	calls []*pending[V]
}

// newFetcher must be called after the cache or pager under test so its
// cleanup runs before theirs.
func newFetcher[V any](t *testing.T) *fetcher[V] {
	f := &fetcher[V]{}
	t.Cleanup(f.releaseAll)
	return f
}

func (f *fetcher[V]) fetch(ctx context.Context) (V, error) {
	return f.wait(ctx, nil)
}

func (f *fetcher[V]) page(ctx context.Context, param int) (V, error) {
	return f.wait(ctx, param)
}

func (f *fetcher[V]) wait(ctx context.Context, arg any) (V, error) {
	p := &pending[V]{ctx: ctx, arg: arg, done: make(chan outcome[V], 1)}
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	o := <-p.done
	return o.v, o.err
}

func (f *fetcher[V]) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// call waits until the i-th call (0-indexed) has been made and returns it.
func (f *fetcher[V]) call(t *testing.T, i int) *pending[V] {
	t.Helper()
	waitFor(t, func() bool { return f.count() > i })
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// releaseAll unblocks every call that is still waiting.
func (f *fetcher[V]) releaseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.calls {
		select {
		case p.done <- outcome[V]{err: context.Canceled}:
		default:
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// ==============================
// Clock, bus counter, hooks
// ==============================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() { c.mu.Lock(); c.n++; c.mu.Unlock() }
func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type recordingHooks struct {
	NopHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) add(ev string) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recordingHooks) has(ev string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == ev {
			return true
		}
	}
	return false
}

func (h *recordingHooks) FetchStarted(k string, _ bool)                   { h.add("started " + k) }
func (h *recordingHooks) FetchSucceeded(k string, _ time.Duration)        { h.add("succeeded " + k) }
func (h *recordingHooks) FetchFailed(k string, _ int, _ error)            { h.add("failed " + k) }
func (h *recordingHooks) FetchDropped(k string)                           { h.add("dropped " + k) }
func (h *recordingHooks) RetryScheduled(k string, _ int, _ time.Duration) { h.add("retry " + k) }
func (h *recordingHooks) OptimisticRolledBack(k string, _ error)          { h.add("rollback " + k) }
func (h *recordingHooks) Evicted(k string, demoted bool) {
	if demoted {
		h.add("demoted " + k)
		return
	}
	h.add("evicted " + k)
}
func (h *recordingHooks) ColdHit(k string)              { h.add("coldhit " + k) }
func (h *recordingHooks) ColdCorrupt(k string, _ error) { h.add("corrupt " + k) }

// ==============================
// In-memory cold tier
// ==============================

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Clear(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]memEntry)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

// ==============================
// Constructors
// ==============================

func newTestCache(t *testing.T, optsOpt func(*Options[user])) *cache[user] {
	t.Helper()
	opts := Options[user]{Namespace: "user", SweepInterval: -1}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New[user](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	impl, ok := cc.(*cache[user])
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = impl.Close(ctx)
	})
	return impl
}

func withColdTier(mp pr.Provider) func(*Options[user]) {
	return func(o *Options[user]) {
		o.ColdTier = mp
		o.Codec = codec.JSON[user]{}
	}
}
