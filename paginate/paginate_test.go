package paginate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	fc "github.com/unkn0wn-root/fetchcache"
)

func TestOffsetHasMore(t *testing.T) {
	a := Offset[string](1)

	next, ok := a.Next(OffsetPage[string]{Data: []string{"a"}, HasMore: true}, nil, 1)
	if !ok || next != 2 {
		t.Fatalf("hasMore=true: got (%d, %v), want (2, true)", next, ok)
	}

	last := OffsetPage[string]{Data: []string{"z"}, HasMore: false}
	if _, ok := a.Next(last, nil, 1); ok {
		t.Fatal("hasMore=false must report no further page")
	}
	e := fc.PageEntry[int, OffsetPage[string]]{
		Status: fc.PageSuccess,
		Pages:  []OffsetPage[string]{last},
		Params: []int{1},
	}
	if a.HasNext(e) || fc.HasNextPage(e, a.Next) {
		t.Fatal("HasNext should be false when the last page has no more")
	}
}

func TestOffsetTotalPagesAndPrevious(t *testing.T) {
	a := Offset[int](1)
	p := OffsetPage[int]{TotalPages: 3}

	if next, ok := a.Next(p, nil, 2); !ok || next != 3 {
		t.Fatalf("page 2 of 3: got (%d, %v)", next, ok)
	}
	if _, ok := a.Next(p, nil, 3); ok {
		t.Fatal("page 3 of 3 is the last")
	}
	if prev, ok := a.Previous(p, nil, 3); !ok || prev != 2 {
		t.Fatalf("previous of 3: got (%d, %v)", prev, ok)
	}
	if _, ok := a.Previous(p, nil, 1); ok {
		t.Fatal("no page before the first")
	}
}

func TestCursorAndLink(t *testing.T) {
	c := Cursor[int]()
	if c.Initial != "" {
		t.Fatalf("cursor initial = %q", c.Initial)
	}
	if next, ok := c.Next(CursorPage[int]{NextCursor: "abc"}, nil, ""); !ok || next != "abc" {
		t.Fatalf("cursor next: (%q, %v)", next, ok)
	}
	if _, ok := c.Previous(CursorPage[int]{}, nil, "abc"); ok {
		t.Fatal("empty prev cursor means no previous page")
	}

	l := Link[int]("https://api.example.com/items")
	page := LinkPage[int]{Next: "https://api.example.com/items?page=2"}
	if next, ok := l.Next(page, nil, l.Initial); !ok || next != page.Next {
		t.Fatalf("link next: (%q, %v)", next, ok)
	}
	if _, ok := l.Previous(page, nil, l.Initial); ok {
		t.Fatal("missing prev link means no previous page")
	}
}

func TestSkipTotal(t *testing.T) {
	a := SkipTotal[int](10)
	cases := []struct {
		name   string
		page   SkipTotalPage[int]
		skip   int
		next   int
		hasNxt bool
		prev   int
		hasPrv bool
	}{
		{"first window", SkipTotalPage[int]{Total: 25}, 0, 10, true, 0, false},
		{"middle", SkipTotalPage[int]{Total: 25}, 10, 20, true, 0, true},
		{"last window", SkipTotalPage[int]{Total: 25}, 20, 0, false, 10, true},
		{"own limit", SkipTotalPage[int]{Limit: 5, Total: 25}, 5, 10, true, 0, true},
		{"exact end", SkipTotalPage[int]{Total: 20}, 10, 0, false, 0, true},
	}
	for _, tc := range cases {
		next, ok := a.Next(tc.page, nil, tc.skip)
		if ok != tc.hasNxt || (ok && next != tc.next) {
			t.Fatalf("%s: next = (%d, %v), want (%d, %v)", tc.name, next, ok, tc.next, tc.hasNxt)
		}
		prev, ok := a.Previous(tc.page, nil, tc.skip)
		if ok != tc.hasPrv || (ok && prev != tc.prev) {
			t.Fatalf("%s: prev = (%d, %v), want (%d, %v)", tc.name, prev, ok, tc.prev, tc.hasPrv)
		}
	}
}

func TestCustomAndFlatten(t *testing.T) {
	type resp struct {
		Items []string
		After int
	}
	a := Custom[resp, int, string](0,
		func(r resp) []string { return r.Items },
		func(r resp, _ []resp, _ int) (int, bool) { return r.After, r.After > 0 },
		nil,
	)
	if _, ok := a.Previous(resp{}, nil, 5); ok {
		t.Fatal("nil previous resolver should never report a page")
	}

	pages := []resp{{Items: []string{"a", "b"}, After: 2}, {Items: nil}, {Items: []string{"c"}}}
	if diff := cmp.Diff([]string{"a", "b", "c"}, a.Items(pages)); diff != "" {
		t.Fatalf("flatten (-want +got):\n%s", diff)
	}
	if got := Flatten[resp, string](pages, nil); got != nil {
		t.Fatalf("nil selector should flatten to nil, got %v", got)
	}
}

func TestOffsetDrivesPager(t *testing.T) {
	pg, err := fc.NewPager[int, OffsetPage[string]](fc.PagerOptions{Namespace: "items"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pg.Close(ctx)
	})

	a := Offset[string](1)
	fetch := func(_ context.Context, page int) (OffsetPage[string], error) {
		return OffsetPage[string]{
			Data:    []string{"item-" + strconv.Itoa(page)},
			HasMore: page < 3,
			Page:    page,
		}, nil
	}
	settled := func() bool {
		e := pg.Get("list")
		return !e.Fetching() && e.Status == fc.PageSuccess
	}
	wait := func() {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for !settled() {
			if time.Now().After(deadline) {
				t.Fatal("pager did not settle")
			}
			time.Sleep(time.Millisecond)
		}
	}

	pg.EnsureInitialPage("list", fetch, a.Initial)
	wait()
	for pg.HasNext("list", a.Next) {
		if !pg.FetchNext("list", fetch, a.Next) {
			t.Fatal("FetchNext should start while HasNext is true")
		}
		wait()
	}

	e := pg.Get("list")
	if diff := cmp.Diff([]string{"item-1", "item-2", "item-3"}, a.Items(e.Pages)); diff != "" {
		t.Fatalf("items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, e.Params); diff != "" {
		t.Fatalf("params (-want +got):\n%s", diff)
	}
}
