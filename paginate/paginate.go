// Package paginate translates common paginated response shapes into the
// param resolvers a fetchcache.Pager consumes.
//
// Adapters hold no state and can be shared across keys.
package paginate

import (
	fc "github.com/unkn0wn-root/fetchcache"
)

// Adapter bundles what a Pager needs for one response shape R with page
// params P and items T.
type Adapter[R, P, T any] struct {
	Initial  P
	Select   func(page R) []T
	Next     fc.ParamFunc[P, R]
	Previous fc.ParamFunc[P, R]
}

// Items flattens pages through the adapter's Select.
func (a Adapter[R, P, T]) Items(pages []R) []T {
	return Flatten(pages, a.Select)
}

// HasNext reports whether another page follows the last one in e.
func (a Adapter[R, P, T]) HasNext(e fc.PageEntry[P, R]) bool {
	return fc.HasNextPage(e, a.Next)
}

// HasPrevious reports whether a page precedes the first one in e.
func (a Adapter[R, P, T]) HasPrevious(e fc.PageEntry[P, R]) bool {
	return fc.HasPreviousPage(e, a.Previous)
}

// Flatten concatenates the items of every page in order. A nil sel
// yields nil.
func Flatten[R, T any](pages []R, sel func(R) []T) []T {
	if sel == nil {
		return nil
	}
	n := 0
	parts := make([][]T, len(pages))
	for i, p := range pages {
		parts[i] = sel(p)
		n += len(parts[i])
	}
	out := make([]T, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

// Custom builds an adapter from caller-supplied functions. A nil
// previous resolver means the sequence only grows forward.
func Custom[R, P, T any](initial P, sel func(R) []T, next, previous fc.ParamFunc[P, R]) Adapter[R, P, T] {
	if previous == nil {
		previous = none[P, R]
	}
	return Adapter[R, P, T]{Initial: initial, Select: sel, Next: next, Previous: previous}
}

func none[P, R any](R, []R, P) (P, bool) {
	var zero P
	return zero, false
}
