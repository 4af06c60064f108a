package paginate

// ==============================
// Offset / page counter
// ==============================

// OffsetPage is a page-numbered response. TotalPages is optional.
type OffsetPage[T any] struct {
	Data       []T  `json:"data"`
	HasMore    bool `json:"hasMore"`
	Page       int  `json:"page,omitempty"`
	TotalPages int  `json:"totalPages,omitempty"`
}

// Offset pages by counter starting at first. A next page exists when the
// response says hasMore or the current page is below TotalPages.
func Offset[T any](first int) Adapter[OffsetPage[T], int, T] {
	return Adapter[OffsetPage[T], int, T]{
		Initial: first,
		Select:  func(p OffsetPage[T]) []T { return p.Data },
		Next: func(p OffsetPage[T], _ []OffsetPage[T], param int) (int, bool) {
			if p.HasMore || (p.TotalPages > 0 && param < p.TotalPages) {
				return param + 1, true
			}
			return 0, false
		},
		Previous: func(_ OffsetPage[T], _ []OffsetPage[T], param int) (int, bool) {
			if param > first {
				return param - 1, true
			}
			return 0, false
		},
	}
}

// ==============================
// Cursor token
// ==============================

// CursorPage carries opaque tokens for its neighbours. Empty means none.
type CursorPage[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"nextCursor,omitempty"`
	PrevCursor string `json:"prevCursor,omitempty"`
}

// Cursor pages by token. The first page is requested with an empty cursor.
func Cursor[T any]() Adapter[CursorPage[T], string, T] {
	return Adapter[CursorPage[T], string, T]{
		Select: func(p CursorPage[T]) []T { return p.Data },
		Next: func(p CursorPage[T], _ []CursorPage[T], _ string) (string, bool) {
			return p.NextCursor, p.NextCursor != ""
		},
		Previous: func(p CursorPage[T], _ []CursorPage[T], _ string) (string, bool) {
			return p.PrevCursor, p.PrevCursor != ""
		},
	}
}

// ==============================
// Link URL
// ==============================

// LinkPage carries absolute URLs of its neighbours, as in a Link header.
type LinkPage[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
}

// Link pages by following URLs, starting at first.
func Link[T any](first string) Adapter[LinkPage[T], string, T] {
	return Adapter[LinkPage[T], string, T]{
		Initial: first,
		Select:  func(p LinkPage[T]) []T { return p.Data },
		Next: func(p LinkPage[T], _ []LinkPage[T], _ string) (string, bool) {
			return p.Next, p.Next != ""
		},
		Previous: func(p LinkPage[T], _ []LinkPage[T], _ string) (string, bool) {
			return p.Prev, p.Prev != ""
		},
	}
}

// ==============================
// Skip / total
// ==============================

// SkipTotalPage is a window of Total items starting at Skip.
type SkipTotalPage[T any] struct {
	Data  []T `json:"data"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// SkipTotal pages by item offset. The param is the skip value; limit is
// used when a response omits its own.
func SkipTotal[T any](limit int) Adapter[SkipTotalPage[T], int, T] {
	step := func(p SkipTotalPage[T]) int {
		if p.Limit > 0 {
			return p.Limit
		}
		return limit
	}
	return Adapter[SkipTotalPage[T], int, T]{
		Select: func(p SkipTotalPage[T]) []T { return p.Data },
		Next: func(p SkipTotalPage[T], _ []SkipTotalPage[T], skip int) (int, bool) {
			n := step(p)
			if n > 0 && skip+n < p.Total {
				return skip + n, true
			}
			return 0, false
		},
		Previous: func(p SkipTotalPage[T], _ []SkipTotalPage[T], skip int) (int, bool) {
			if skip <= 0 {
				return 0, false
			}
			return max(skip-step(p), 0), true
		},
	}
}
