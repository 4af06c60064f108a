package fetchcache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/unkn0wn-root/fetchcache/internal/keys"
	"github.com/unkn0wn-root/fetchcache/retry"
)

type pageMode uint8

const (
	modeInitial pageMode = iota
	modeNext
	modePrevious
)

type pager[P, R any] struct {
	*core

	store    *Store[PageEntry[P, R]]
	defaults FetchOptions

	closeOnce sync.Once
	closeErr  error
}

var _ Pager[int, struct{}] = (*pager[int, struct{}])(nil)

func (p *pager[P, R]) storageKey(key string) string { return keys.Pages(p.ns, key) }

func (p *pager[P, R]) EnsureInitialPage(key string, fn PageFetchFunc[P, R], initial P, opts ...Option) bool {
	o := resolveOptions(p.defaults, opts)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	e, ok := p.store.Get(key)
	if ok && !e.needsInitial() {
		p.mu.Unlock()
		return false
	}
	tok, started := p.beginLocked(key, e, PageLoading)
	if started {
		p.spawn(func() { p.runOne(tok, key, fn, initial, modeInitial, o) })
	}
	p.mu.Unlock()

	if started {
		p.announce(tok, o, false)
	}
	return started
}

func (p *pager[P, R]) FetchNext(key string, fn PageFetchFunc[P, R], next ParamFunc[P, R], opts ...Option) bool {
	return p.fetchEdge(key, fn, next, modeNext, opts)
}

func (p *pager[P, R]) FetchPrevious(key string, fn PageFetchFunc[P, R], prev ParamFunc[P, R], opts ...Option) bool {
	return p.fetchEdge(key, fn, prev, modePrevious, opts)
}

func (p *pager[P, R]) fetchEdge(key string, fn PageFetchFunc[P, R], resolve ParamFunc[P, R], mode pageMode, opts []Option) bool {
	o := resolveOptions(p.defaults, opts)
	tok, started := p.beginEdge(key, fn, resolve, mode, o)
	if started {
		p.announce(tok, o, true)
	}
	return started
}

// beginEdge resolves the edge param under the lock. The deferred unlock
// keeps the pager usable when resolve panics.
func (p *pager[P, R]) beginEdge(key string, fn PageFetchFunc[P, R], resolve ParamFunc[P, R], mode pageMode, o FetchOptions) (*Token, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false
	}
	e, ok := p.store.Get(key)
	n := len(e.Pages)
	if !ok || n == 0 {
		return nil, false
	}

	var (
		param  P
		more   bool
		status PageStatus
	)
	if mode == modeNext {
		param, more = resolve(e.Pages[n-1], e.Pages, e.Params[n-1])
		status = PageFetchingNext
	} else {
		param, more = resolve(e.Pages[0], e.Pages, e.Params[0])
		status = PageFetchingPrevious
	}
	if !more {
		return nil, false
	}

	tok, started := p.beginLocked(key, e, status)
	if started {
		p.spawn(func() { p.runOne(tok, key, fn, param, mode, o) })
	}
	return tok, started
}

func (p *pager[P, R]) RefetchAll(key string, fn PageFetchFunc[P, R], opts ...Option) bool {
	o := resolveOptions(p.defaults, opts)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	e, ok := p.store.Get(key)
	if !ok || len(e.Params) == 0 {
		p.mu.Unlock()
		return false
	}
	params := slices.Clone(e.Params)
	tok, started := p.beginLocked(key, e, PageLoading)
	if started {
		p.spawn(func() { p.runAll(tok, key, fn, params, o) })
	}
	p.mu.Unlock()

	if started {
		p.announce(tok, o, true)
	}
	return started
}

func (p *pager[P, R]) beginLocked(key string, e PageEntry[P, R], status PageStatus) (*Token, bool) {
	tok, err := p.reqs.Begin(p.ctx, p.storageKey(key))
	if err != nil {
		p.log.Error("begin page request failed", Fields{"ns": p.ns, "key": key, "err": err})
		return nil, false
	}
	e.Status = status
	e.inflight = tok.Gen()
	p.store.Set(key, e)
	return tok, true
}

func (p *pager[P, R]) announce(tok *Token, o FetchOptions, background bool) {
	p.bus.Notify()
	if o.EnableMetrics {
		p.hooks.FetchStarted(tok.Key(), background)
	}
}

func (p *pager[P, R]) policy(tok *Token, key string, o FetchOptions, failures *int) retry.Policy {
	return observeAttempts(o.RetryPolicy(), failures, func(attempt int, delay time.Duration) {
		p.log.Debug("page attempt failed, retrying", Fields{"key": key, "attempt": attempt, "delay": delay})
		if o.EnableMetrics {
			p.hooks.RetryScheduled(tok.Key(), attempt, delay)
		}
	})
}

func (p *pager[P, R]) runOne(tok *Token, key string, fn PageFetchFunc[P, R], param P, mode pageMode, o FetchOptions) {
	start := p.now()
	failures := 0
	r, err := retry.Do(tok.Context(), p.policy(tok, key, o, &failures), func(ctx context.Context) (R, error) {
		return safePage(ctx, fn, param)
	})

	p.complete(tok, key, o, err, failures, p.now().Sub(start), func(e *PageEntry[P, R]) {
		switch mode {
		case modeInitial:
			e.Pages, e.Params = []R{r}, []P{param}
		case modeNext:
			e.Pages = slices.Concat(e.Pages, []R{r})
			e.Params = slices.Concat(e.Params, []P{param})
		case modePrevious:
			e.Pages = slices.Concat([]R{r}, e.Pages)
			e.Params = slices.Concat([]P{param}, e.Params)
		}
	}, nil)
}

func (p *pager[P, R]) runAll(tok *Token, key string, fn PageFetchFunc[P, R], params []P, o FetchOptions) {
	start := p.now()
	failures := 0
	pol := p.policy(tok, key, o, &failures)

	pages := make([]R, 0, len(params))
	var err error
	for _, param := range params {
		r, ferr := retry.Do(tok.Context(), pol, func(ctx context.Context) (R, error) {
			return safePage(ctx, fn, param)
		})
		if ferr != nil {
			err = ferr
			break
		}
		pages = append(pages, r)
	}

	p.complete(tok, key, o, err, failures, p.now().Sub(start), func(e *PageEntry[P, R]) {
		e.Pages, e.Params = pages, params
	}, func(e *PageEntry[P, R]) {
		e.Pages, e.Params = nil, nil
	})
}

// complete applies a finished page request. A superseded or cancelled
// request writes nothing. onFail may further reset the entry on failure;
// nil leaves the pages untouched.
func (p *pager[P, R]) complete(tok *Token, key string, o FetchOptions, err error, failures int, took time.Duration, onOK, onFail func(*PageEntry[P, R])) {
	cancelled := p.reqs.IsCancelled(tok)

	p.mu.Lock()
	current := p.reqs.Complete(tok)
	e, ok := p.store.Get(key)
	if !current || cancelled || !ok {
		p.mu.Unlock()
		p.log.Debug("page result dropped", Fields{"key": key, "gen": tok.Gen()})
		if o.EnableMetrics {
			p.hooks.FetchDropped(tok.Key())
		}
		return
	}

	e.inflight = 0
	if err == nil {
		onOK(&e)
		e.Status = PageSuccess
		e.Err = nil
		e.UpdatedAt = p.now()
	} else {
		if onFail != nil {
			onFail(&e)
		}
		e.Status = PageError
		e.Err = err
	}
	p.store.Set(key, e)
	p.mu.Unlock()

	if err == nil {
		if o.EnableMetrics {
			p.hooks.FetchSucceeded(tok.Key(), took)
		}
	} else {
		p.log.Warn("page fetch failed", Fields{"ns": p.ns, "key": key, "err": err})
		if o.EnableMetrics {
			p.hooks.FetchFailed(tok.Key(), max(failures, 1), err)
		}
		if o.OnError != nil {
			o.OnError(key, err)
		}
	}
	p.bus.Notify()
}

func (p *pager[P, R]) HasNext(key string, next ParamFunc[P, R]) bool {
	e, _ := p.store.Get(key)
	return HasNextPage(e, next)
}

func (p *pager[P, R]) HasPrevious(key string, prev ParamFunc[P, R]) bool {
	e, _ := p.store.Get(key)
	return HasPreviousPage(e, prev)
}

func (p *pager[P, R]) Cancel(key string) bool {
	p.mu.Lock()
	if !p.reqs.Cancel(p.storageKey(key)) {
		p.mu.Unlock()
		return false
	}
	if e, ok := p.store.Get(key); ok {
		e.inflight = 0
		if len(e.Pages) > 0 {
			e.Status = PageSuccess
		} else {
			e.Status = PageIdle
		}
		p.store.Set(key, e)
	}
	p.mu.Unlock()

	p.bus.Notify()
	return true
}

func (p *pager[P, R]) Get(key string) PageEntry[P, R] {
	e, _ := p.store.Get(key)
	return e.clone()
}

func (p *pager[P, R]) Invalidate(key string) {
	p.mu.Lock()
	p.reqs.Cancel(p.storageKey(key))
	p.store.Delete(key)
	p.mu.Unlock()

	p.log.Debug("invalidated pages", Fields{"ns": p.ns, "key": key})
	p.bus.Notify()
}

func (p *pager[P, R]) Clear() {
	p.mu.Lock()
	p.reqs.CancelAll()
	p.store.Clear()
	p.mu.Unlock()

	p.bus.Notify()
}

func (p *pager[P, R]) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { p.closeErr = p.shutdown(ctx) })
	return p.closeErr
}

func safePage[P, R any](ctx context.Context, fn PageFetchFunc[P, R], param P) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetchcache: page fetch panicked: %v", rec)
		}
	}()
	return fn(ctx, param)
}
