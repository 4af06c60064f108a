// Package bgsync periodically resynchronises cached data while the client
// is online.
//
// A Manager ticks every Interval and calls Sync when online. Going from
// offline to online triggers an immediate sync. Online state is either set
// by the caller or derived from a Probe polled on every tick.
package bgsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	fc "github.com/unkn0wn-root/fetchcache"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

var (
	ErrNoSync    = errors.New("bgsync: Sync is required")
	ErrThrottled = errors.New("bgsync: sync throttled")
)

// Probe reports connectivity. A nil error means online.
type Probe func(ctx context.Context) error

type Options struct {
	// Sync is called on every online tick. Required.
	Sync func(ctx context.Context) error

	// Interval between ticks. Zero means DefaultInterval.
	Interval time.Duration

	// Probe, when set, is polled every tick and decides the online state.
	Probe        Probe
	ProbeTimeout time.Duration

	// MinInterval throttles syncs regardless of their trigger. Zero
	// disables throttling.
	MinInterval time.Duration

	// StartOffline makes the manager wait for SetOnline(true) or a
	// successful probe before the first sync.
	StartOffline bool

	Logger fc.Logger
}

type Manager struct {
	sync         func(ctx context.Context) error
	interval     time.Duration
	probe        Probe
	probeTimeout time.Duration
	limiter      *rate.Limiter
	log          fc.Logger

	online atomic.Bool
	wake   chan struct{}
	syncMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) (*Manager, error) {
	if opts.Sync == nil {
		return nil, ErrNoSync
	}
	m := &Manager{
		sync:         opts.Sync,
		interval:     opts.Interval,
		probe:        opts.Probe,
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
		wake:         make(chan struct{}, 1),
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = DefaultProbeTimeout
	}
	if m.log == nil {
		m.log = fc.NopLogger{}
	}
	if opts.MinInterval > 0 {
		m.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	m.online.Store(!opts.StartOffline)
	return m, nil
}

// Start launches the ticking loop. Calling it while running is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.stopCh = make(chan struct{})
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(ctx, m.stopCh)
	m.log.Debug("background sync started", fc.Fields{"interval": m.interval})
}

// Stop halts the loop, cancels a sync in progress and waits for the loop
// to exit. Calling it while stopped is a no-op. Start may be called again.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Debug("background sync stopped", nil)
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetOnline records connectivity. A transition to online wakes the loop
// for an immediate sync.
func (m *Manager) SetOnline(online bool) {
	if prev := m.online.Swap(online); online && !prev {
		m.log.Info("client back online", nil)
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

func (m *Manager) Online() bool { return m.online.Load() }

// SyncNow runs Sync on the caller's goroutine regardless of the online
// state. It returns ErrThrottled when MinInterval has not yet elapsed.
func (m *Manager) SyncNow(ctx context.Context) error {
	return m.runSync(ctx)
}

func (m *Manager) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick(ctx)
		case <-m.wake:
			if m.Online() {
				m.syncLogged(ctx)
			}
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	if m.probe != nil {
		pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		err := m.probe(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil && m.online.Swap(false) {
			m.log.Warn("connectivity probe failed, going offline", fc.Fields{"err": err})
		} else if err == nil && !m.online.Swap(true) {
			m.log.Info("connectivity probe recovered", nil)
		}
	}
	if m.Online() {
		m.syncLogged(ctx)
	}
}

func (m *Manager) syncLogged(ctx context.Context) {
	switch err := m.runSync(ctx); {
	case err == nil:
	case errors.Is(err, ErrThrottled):
		m.log.Debug("background sync throttled", nil)
	case fc.IsCancellation(err) && ctx.Err() != nil:
	default:
		m.log.Warn("background sync failed", fc.Fields{"err": err})
	}
}

func (m *Manager) runSync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	if m.limiter != nil && !m.limiter.Allow() {
		return ErrThrottled
	}
	return m.sync(ctx)
}
