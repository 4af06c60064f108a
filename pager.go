package fetchcache

import (
	"context"
	"slices"
	"time"

	gen "github.com/unkn0wn-root/fetchcache/genstore"
)

// PageFetchFunc loads the page for param.
type PageFetchFunc[P, R any] func(ctx context.Context, param P) (R, error)

// ParamFunc derives the neighbouring page parameter from the edge page, all
// pages and the edge param. ok=false means there is no such page.
type ParamFunc[P, R any] func(page R, pages []R, param P) (next P, ok bool)

// PageEntry is the accumulated state of one paginated key. Pages and Params
// always have the same length and are ordered along the forward axis.
type PageEntry[P, R any] struct {
	Status    PageStatus
	Pages     []R
	Params    []P
	Err       error
	UpdatedAt time.Time

	inflight uint64
}

func (e PageEntry[P, R]) Fetching() bool { return e.inflight != 0 }

// HasNextPage reports whether next yields a parameter after the last page.
func HasNextPage[P, R any](e PageEntry[P, R], next ParamFunc[P, R]) bool {
	n := len(e.Pages)
	if n == 0 || next == nil {
		return false
	}
	_, ok := next(e.Pages[n-1], e.Pages, e.Params[n-1])
	return ok
}

// HasPreviousPage reports whether prev yields a parameter before the first
// page.
func HasPreviousPage[P, R any](e PageEntry[P, R], prev ParamFunc[P, R]) bool {
	if len(e.Pages) == 0 || prev == nil {
		return false
	}
	_, ok := prev(e.Pages[0], e.Pages, e.Params[0])
	return ok
}

// needsInitial reports whether an initial page fetch may start: the entry is
// Idle, or it failed with nothing accumulated.
func (e PageEntry[P, R]) needsInitial() bool {
	switch e.Status {
	case PageIdle:
		return true
	case PageError:
		return len(e.Pages) == 0 && !e.Fetching()
	}
	return false
}

func (e PageEntry[P, R]) clone() PageEntry[P, R] {
	e.Pages = slices.Clone(e.Pages)
	e.Params = slices.Clone(e.Params)
	return e
}

// Pager accumulates pages per key for infinite lists. Page entries live in
// their own key namespace and never collide with Cache entries.
type Pager[P, R any] interface {
	// EnsureInitialPage fetches the first page iff the key is absent, Idle,
	// or in Error with no pages left (a failed initial page or RefetchAll).
	EnsureInitialPage(key string, fn PageFetchFunc[P, R], initial P, opts ...Option) bool
	// FetchNext appends the page after the last one. next is applied
	// synchronously; a panic in it propagates to the caller.
	FetchNext(key string, fn PageFetchFunc[P, R], next ParamFunc[P, R], opts ...Option) bool
	// FetchPrevious prepends the page before the first one.
	FetchPrevious(key string, fn PageFetchFunc[P, R], prev ParamFunc[P, R], opts ...Option) bool
	// RefetchAll refetches every known param in order under one request.
	RefetchAll(key string, fn PageFetchFunc[P, R], opts ...Option) bool

	HasNext(key string, next ParamFunc[P, R]) bool
	HasPrevious(key string, prev ParamFunc[P, R]) bool
	Cancel(key string) bool

	// Get returns a copy of the entry; absent keys read as Idle.
	Get(key string) PageEntry[P, R]
	Invalidate(key string)
	Clear()
	Subscribe(fn func()) (unsubscribe func())
	Close(context.Context) error
}

// PagerOptions tune a Pager. Only Namespace is required.
type PagerOptions struct {
	Namespace string

	Logger   Logger
	Hooks    Hooks
	Bus      *Bus
	GenStore gen.GenStore

	// Defaults apply before per-call Options. Only retry, OnError and
	// EnableMetrics affect pages.
	Defaults FetchOptions

	Clock func() time.Time
}

func NewPager[P, R any](opts PagerOptions) (Pager[P, R], error) {
	co, err := newCore(opts.Namespace, opts.Logger, opts.Hooks, opts.Bus, opts.GenStore, opts.Clock)
	if err != nil {
		return nil, err
	}
	return &pager[P, R]{
		core:     co,
		store:    NewStore[PageEntry[P, R]](),
		defaults: opts.Defaults,
	}, nil
}
