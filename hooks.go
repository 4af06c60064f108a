package fetchcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async. Events fire only for calls made with EnableMetrics.
//
// storageKey is the namespaced key ("single:<ns>:<key>" or
// "pages:<ns>:<key>").
type Hooks interface {
	// A request was started. background is true for revalidations that keep
	// existing data visible.
	FetchStarted(storageKey string, background bool)

	// A current request completed successfully.
	FetchSucceeded(storageKey string, took time.Duration)

	// A current request failed after attempts tries.
	FetchFailed(storageKey string, attempts int, err error)

	// A request finished after being superseded or cancelled; its result was
	// discarded.
	FetchDropped(storageKey string)

	// An attempt failed and another one follows after delay.
	RetryScheduled(storageKey string, attempt int, delay time.Duration)

	// An optimistic mutation failed and its overlay was rolled back.
	OptimisticRolledBack(storageKey string, err error)

	// The retention sweeper removed an inactive entry. demoted reports
	// whether it was written to the cold tier.
	Evicted(storageKey string, demoted bool)

	// An absent entry was promoted back from the cold tier.
	ColdHit(storageKey string)

	// A cold record failed to decode and was deleted.
	ColdCorrupt(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string, bool)                 {}
func (NopHooks) FetchSucceeded(string, time.Duration)      {}
func (NopHooks) FetchFailed(string, int, error)            {}
func (NopHooks) FetchDropped(string)                       {}
func (NopHooks) RetryScheduled(string, int, time.Duration) {}
func (NopHooks) OptimisticRolledBack(string, error)        {}
func (NopHooks) Evicted(string, bool)                      {}
func (NopHooks) ColdHit(string)                            {}
func (NopHooks) ColdCorrupt(string, error)                 {}
