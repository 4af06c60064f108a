// Package fetchcache is a client-side data-fetching cache.
//
// A Cache deduplicates asynchronous fetches per key and shares their results
// with any number of subscribers. Every entry runs a small state machine:
//
//	Idle -> Loading -> Success | Error
//	Success -> Refetching -> Success | Error
//
// At most one request is in flight per key. Starting a new request cancels
// the previous one through its context, and a superseded request never
// writes: the last request started wins. Ownership is tracked with per-key
// generations from a genstore.GenStore.
//
// Components:
//   - Store[E]: keyed entry storage, safe for concurrent readers.
//   - Requests: one cancellable token per key.
//   - Bus: coarse change notification shared by caches and pagers.
//   - Cache[V]: the orchestrator (Ensure, Query, Refetch, RetryWithBackoff,
//     ApplyOptimistic, Invalidate, ...).
//   - Pager[P,R]: accumulates pages for infinite lists.
//   - Cold tier: entries swept for inactivity can be demoted to a
//     provider.Provider and promoted back on the next Ensure.
//
// Subpackages: retry (backoff loop), paginate (response-shape adapters for
// Pager), bgsync (periodic resync while online), config (YAML/TOML fetch
// options), fetchtrace (OpenTelemetry spans), metrics/prom, sloghooks and
// hooks/async (Hooks implementations), log/* (Logger adapters).
//
// Keys:
//
//	single:<ns>:<key>      - single entries
//	pages:<ns>:<key>       - paginated entries
//	optimistic:<ns>:<key>  - optimistic overlay generations
//
// Typical use:
//
//	users, _ := fetchcache.New[User](fetchcache.Options[User]{Namespace: "user"})
//	unsub := users.Subscribe(func() { render(users.Get("42")) })
//	defer unsub()
//	users.Query("42", func(ctx context.Context) (User, error) { return api.User(ctx, "42") })
package fetchcache
