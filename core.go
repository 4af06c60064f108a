package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gen "github.com/unkn0wn-root/fetchcache/genstore"
)

const (
	defaultGenCleanup   = time.Hour
	defaultGenRetention = 30 * 24 * time.Hour
)

// core is the orchestration state shared by Cache and Pager.
//
// mu is the orchestrator lock: every read-check-write of an entry, including
// the "is this request still current" check, happens under it. Fetches,
// backoff sleeps and mutations run on goroutines without holding it, and the
// bus is notified after unlock.
type core struct {
	ns    string
	log   Logger
	hooks Hooks
	bus   *Bus
	gens  gen.GenStore
	reqs  *Requests
	now   func() time.Time

	ownsGens bool

	mu     sync.Mutex
	closed bool

	ctx    context.Context // cancelled by Close; parent of every request
	cancel context.CancelFunc
	work   sync.WaitGroup // fetch and mutation goroutines
}

func newCore(ns string, log Logger, hooks Hooks, bus *Bus, gs gen.GenStore, clock func() time.Time) (*core, error) {
	if ns == "" {
		return nil, ErrNamespaceRequired
	}
	if strings.Contains(ns, ":") {
		return nil, fmt.Errorf("fetchcache: namespace %q must not contain ':'", ns)
	}
	c := &core{
		ns:    ns,
		log:   coalesce[Logger](log, NopLogger{}),
		hooks: coalesce[Hooks](hooks, NopHooks{}),
		bus:   bus,
		gens:  gs,
		now:   clock,
	}
	if c.bus == nil {
		c.bus = NewBus()
	}
	if c.gens == nil {
		c.gens = gen.NewLocalGenStore(defaultGenCleanup, defaultGenRetention)
		c.ownsGens = true
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.reqs = NewRequests(c.gens)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

func (c *core) Subscribe(fn func()) func() { return c.bus.Subscribe(fn) }

// spawn registers a goroutine with the close barrier. Callers hold mu and
// have checked closed.
func (c *core) spawn(fn func()) {
	c.work.Add(1)
	go func() {
		defer c.work.Done()
		fn()
	}()
}

// shutdown stops new work, cancels in-flight requests and waits for their
// goroutines until ctx expires.
func (c *core) shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.reqs.CancelAll()
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.work.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("fetchcache: close %s: %w", c.ns, ctx.Err())
	}
	if c.ownsGens {
		err = errors.Join(err, c.gens.Close(ctx))
	}
	return err
}
