package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestPager(t *testing.T) *pager[int, string] {
	t.Helper()
	pg, err := NewPager[int, string](PagerOptions{Namespace: "feed"})
	if err != nil {
		t.Fatalf("NewPager: %v", err)
	}
	impl := pg.(*pager[int, string])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = impl.Close(ctx)
	})
	return impl
}

func nextUpTo(last int) ParamFunc[int, string] {
	return func(_ string, _ []string, p int) (int, bool) {
		if p >= last {
			return 0, false
		}
		return p + 1, true
	}
}

func prevDownTo(first int) ParamFunc[int, string] {
	return func(_ string, _ []string, p int) (int, bool) {
		if p <= first {
			return 0, false
		}
		return p - 1, true
	}
}

func pageName(p int) string { return fmt.Sprintf("p%d", p) }

// loadPage resolves the i-th fetch call with the page for its param and
// waits for the pager to settle.
func loadPage(t *testing.T, pg *pager[int, string], f *fetcher[string], i int) {
	t.Helper()
	c := f.call(t, i)
	c.resolve(pageName(c.arg.(int)))
	waitFor(t, func() bool { return !pg.Get("posts").Fetching() })
}

func TestPaginationOrderInvariant(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	if !pg.EnsureInitialPage("posts", f.page, 5) {
		t.Fatal("initial page should start")
	}
	if pg.EnsureInitialPage("posts", f.page, 5) {
		t.Fatal("EnsureInitialPage must be idempotent")
	}
	if e := pg.Get("posts"); e.Status != PageLoading {
		t.Fatalf("expected Loading, got %v", e.Status)
	}
	loadPage(t, pg, f, 0)

	calls := 1
	steps := []bool{true, false, true, true, false} // true = next
	for _, forward := range steps {
		var started bool
		if forward {
			started = pg.FetchNext("posts", f.page, nextUpTo(100))
		} else {
			started = pg.FetchPrevious("posts", f.page, prevDownTo(0))
		}
		if !started {
			t.Fatal("edge fetch should start")
		}
		loadPage(t, pg, f, calls)
		calls++

		e := pg.Get("posts")
		if len(e.Pages) != len(e.Params) {
			t.Fatalf("pages/params diverged: %d vs %d", len(e.Pages), len(e.Params))
		}
	}

	e := pg.Get("posts")
	wantParams := []int{3, 4, 5, 6, 7, 8}
	wantPages := []string{"p3", "p4", "p5", "p6", "p7", "p8"}
	if diff := cmp.Diff(wantParams, e.Params); diff != "" {
		t.Fatalf("params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantPages, e.Pages); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
	if e.Status != PageSuccess || e.UpdatedAt.IsZero() {
		t.Fatalf("final status %v", e.Status)
	}
}

func TestEdgeFetchNoOps(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	if pg.FetchNext("posts", f.page, nextUpTo(10)) {
		t.Fatal("FetchNext with zero pages must be a no-op")
	}
	if pg.HasNext("posts", nextUpTo(10)) || pg.HasPrevious("posts", prevDownTo(0)) {
		t.Fatal("HasNext/HasPrevious are false with zero pages")
	}

	pg.EnsureInitialPage("posts", f.page, 1)
	loadPage(t, pg, f, 0)

	if pg.FetchNext("posts", f.page, nextUpTo(1)) {
		t.Fatal("resolver sentinel should make FetchNext a no-op")
	}
	if pg.FetchPrevious("posts", f.page, prevDownTo(1)) {
		t.Fatal("resolver sentinel should make FetchPrevious a no-op")
	}
	if pg.HasNext("posts", nextUpTo(1)) || !pg.HasNext("posts", nextUpTo(2)) {
		t.Fatal("HasNext should mirror the resolver")
	}
	if f.count() != 1 {
		t.Fatalf("no-op calls fetched: %d", f.count())
	}
}

func TestResolverPanicPropagates(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 1)
	loadPage(t, pg, f, 0)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("resolver panic should reach the caller")
			}
		}()
		pg.FetchNext("posts", f.page, func(string, []string, int) (int, bool) { panic("bad resolver") })
	}()

	// The pager is still usable.
	if !pg.FetchNext("posts", f.page, nextUpTo(5)) {
		t.Fatal("pager unusable after resolver panic")
	}
}

func TestPageFailureKeepsPages(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 1)
	loadPage(t, pg, f, 0)

	pg.FetchNext("posts", f.page, nextUpTo(5))
	if e := pg.Get("posts"); e.Status != PageFetchingNext {
		t.Fatalf("expected FetchingNext, got %v", e.Status)
	}
	f.call(t, 1).reject(errNetwork)
	waitFor(t, func() bool { return pg.Get("posts").Status == PageError })

	e := pg.Get("posts")
	if !errors.Is(e.Err, errNetwork) {
		t.Fatalf("Err = %v", e.Err)
	}
	if diff := cmp.Diff([]string{"p1"}, e.Pages); diff != "" {
		t.Fatalf("failure corrupted pages (-want +got):\n%s", diff)
	}
}

func TestPageSupersedeAcrossDirections(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 5)
	loadPage(t, pg, f, 0)

	pg.FetchNext("posts", f.page, nextUpTo(10))
	next := f.call(t, 1)
	pg.FetchPrevious("posts", f.page, prevDownTo(0))
	prev := f.call(t, 2)
	if !next.cancelled() {
		t.Fatal("FetchPrevious should cancel the pending FetchNext")
	}
	if e := pg.Get("posts"); e.Status != PageFetchingPrevious {
		t.Fatalf("expected FetchingPrevious, got %v", e.Status)
	}

	next.resolve("p6")
	prev.resolve("p4")
	waitFor(t, func() bool { return pg.Get("posts").Status == PageSuccess })

	if diff := cmp.Diff([]string{"p4", "p5"}, pg.Get("posts").Pages); diff != "" {
		t.Fatalf("superseded page leaked in (-want +got):\n%s", diff)
	}
}

func TestRefetchAll(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 1)
	loadPage(t, pg, f, 0)
	pg.FetchNext("posts", f.page, nextUpTo(5))
	loadPage(t, pg, f, 1)

	if !pg.RefetchAll("posts", f.page) {
		t.Fatal("RefetchAll should start")
	}
	e := pg.Get("posts")
	if e.Status != PageLoading || len(e.Pages) != 2 {
		t.Fatalf("accumulated pages should stay visible while refetching: %+v", e)
	}
	first := f.call(t, 2)
	if first.arg.(int) != 1 {
		t.Fatalf("refetch must start with the first param, got %v", first.arg)
	}
	first.resolve("p1'")
	second := f.call(t, 3)
	if second.arg.(int) != 2 {
		t.Fatalf("refetch must keep param order, got %v", second.arg)
	}
	second.resolve("p2'")
	waitFor(t, func() bool { return pg.Get("posts").Status == PageSuccess })
	if diff := cmp.Diff([]string{"p1'", "p2'"}, pg.Get("posts").Pages); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}

	// A failing refetch discards everything; a fresh initial page recovers.
	pg.RefetchAll("posts", f.page)
	f.call(t, 4).reject(errNetwork)
	waitFor(t, func() bool { return pg.Get("posts").Status == PageError })
	e = pg.Get("posts")
	if len(e.Pages) != 0 || len(e.Params) != 0 || !errors.Is(e.Err, errNetwork) {
		t.Fatalf("failed refetch: %+v", e)
	}
	if !pg.EnsureInitialPage("posts", f.page, 1) {
		t.Fatal("EnsureInitialPage should restart a key whose refetch failed")
	}
	if pg.EnsureInitialPage("posts", f.page, 1) {
		t.Fatal("EnsureInitialPage must stay idempotent while loading")
	}
	f.call(t, 5).resolve("p1")
	waitFor(t, func() bool { return pg.Get("posts").Status == PageSuccess })
	e = pg.Get("posts")
	if diff := cmp.Diff([]int{1}, e.Params); diff != "" || e.Err != nil {
		t.Fatalf("recovered entry: %+v", e)
	}
}

func TestFailedInitialPageRecovers(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 1)
	f.call(t, 0).reject(errNetwork)
	waitFor(t, func() bool { return pg.Get("posts").Status == PageError })

	if pg.FetchNext("posts", f.page, nextUpTo(5)) || pg.RefetchAll("posts", f.page) {
		t.Fatal("edge fetches and RefetchAll need pages to work from")
	}
	if !pg.EnsureInitialPage("posts", f.page, 1) {
		t.Fatal("EnsureInitialPage should retry a failed initial page")
	}
	if e := pg.Get("posts"); e.Status != PageLoading {
		t.Fatalf("expected Loading, got %v", e.Status)
	}
	f.call(t, 1).resolve("p1")
	waitFor(t, func() bool { return pg.Get("posts").Status == PageSuccess })
	if diff := cmp.Diff([]string{"p1"}, pg.Get("posts").Pages); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}

	// Error with pages kept is not a restart point.
	pg.FetchNext("posts", f.page, nextUpTo(5))
	f.call(t, 2).reject(errNetwork)
	waitFor(t, func() bool { return pg.Get("posts").Status == PageError })
	if pg.EnsureInitialPage("posts", f.page, 1) {
		t.Fatal("EnsureInitialPage must not discard accumulated pages")
	}
}

func TestPagerGetReturnsCopy(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	pg.EnsureInitialPage("posts", f.page, 1)
	loadPage(t, pg, f, 0)

	e := pg.Get("posts")
	e.Pages[0] = "mutated"
	if got := pg.Get("posts").Pages[0]; got != "p1" {
		t.Fatalf("Get leaked internal slice: %q", got)
	}
}

func TestPagerCancelAndClear(t *testing.T) {
	pg := newTestPager(t)
	f := newFetcher[string](t)

	var notes counter
	defer pg.Subscribe(notes.inc)()

	pg.EnsureInitialPage("posts", f.page, 1)
	p := f.call(t, 0)
	if !pg.Cancel("posts") || !p.cancelled() {
		t.Fatal("Cancel should cancel the initial page fetch")
	}
	if e := pg.Get("posts"); e.Status != PageIdle {
		t.Fatalf("cancel without pages should revert to Idle, got %v", e.Status)
	}
	p.resolve("late")
	time.Sleep(20 * time.Millisecond)
	if len(pg.Get("posts").Pages) != 0 {
		t.Fatal("cancelled page fetch wrote pages")
	}

	pg.EnsureInitialPage("other", f.page, 1)
	pg.Clear()
	if pg.store.Len() != 0 || pg.reqs.Inflight() != 0 {
		t.Fatal("Clear left state behind")
	}
	if notes.get() == 0 {
		t.Fatal("pager mutations should notify")
	}
}

func TestCacheAndPagerShareGenStoreWithoutCollisions(t *testing.T) {
	bus := NewBus()
	cc := newTestCache(t, func(o *Options[user]) { o.Bus = bus; o.Namespace = "feed" })
	pg, err := NewPager[int, string](PagerOptions{Namespace: "feed", Bus: bus, GenStore: cc.gens})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pg.Close(ctx)
	})
	f := newFetcher[user](t)
	pf := newFetcher[string](t)

	cc.Ensure("posts", f.fetch)
	single := f.call(t, 0)
	pg.EnsureInitialPage("posts", pf.page, 1)
	_ = pf.call(t, 0)

	if single.cancelled() {
		t.Fatal("a page request must not supersede a single request with the same key")
	}
}
