package fetchcache

import (
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/fetchcache/retry"
)

const (
	DefaultStaleTime  = 5 * time.Second
	DefaultRetryDelay = time.Second
)

// Strategy decides how Query revalidates an entry that already has data.
type Strategy uint8

const (
	// StrategyDefault refreshes stale entries in the background. A failed
	// refresh moves the entry to Error.
	StrategyDefault Strategy = iota
	// StrategyStaleWhileRevalidate refreshes stale entries in the background
	// and keeps serving the stale data if the refresh fails.
	StrategyStaleWhileRevalidate
	// StrategyCacheFirst serves cached data regardless of age.
	StrategyCacheFirst
	// StrategyNetworkFirst refreshes on every observation and falls back to
	// cached data on failure.
	StrategyNetworkFirst
)

func (s Strategy) String() string {
	switch s {
	case StrategyDefault:
		return "default"
	case StrategyStaleWhileRevalidate:
		return "stale-while-revalidate"
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkFirst:
		return "network-first"
	default:
		return "unknown"
	}
}

// ParseStrategy accepts the String form; "" is StrategyDefault.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return StrategyDefault, nil
	case "stale-while-revalidate", "swr":
		return StrategyStaleWhileRevalidate, nil
	case "cache-first":
		return StrategyCacheFirst, nil
	case "network-first":
		return StrategyNetworkFirst, nil
	}
	return StrategyDefault, fmt.Errorf("fetchcache: unknown strategy %q", s)
}

// FetchOptions configures a fetch. Zero fields take the defaults.
type FetchOptions struct {
	StaleTime time.Duration // 0 => DefaultStaleTime
	// NoCache makes every observation revalidate. It never deletes data.
	NoCache bool

	RetryAttempts int           // total attempts; ≤ 1 disables retry
	RetryDelay    time.Duration // 0 => DefaultRetryDelay
	MaxRetryDelay time.Duration // 0 => uncapped
	Backoff       retry.Backoff // exponential unless set to retry.Fixed

	// OnError is called after a current request fails for good.
	OnError func(key string, err error)

	Strategy Strategy

	// CacheTime removes entries inactive for this long. 0 retains forever.
	CacheTime time.Duration

	// EnableMetrics routes this call's events to Hooks.
	EnableMetrics bool
}

// Option overrides a FetchOptions field for one call.
type Option func(*FetchOptions)

// WithStaleTime sets the freshness window. Zero means DefaultStaleTime;
// use WithNoCache to revalidate on every observation.
func WithStaleTime(d time.Duration) Option { return func(o *FetchOptions) { o.StaleTime = d } }
func WithNoCache() Option                  { return func(o *FetchOptions) { o.NoCache = true } }

// WithRetry enables retries: attempts is the total number of tries.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *FetchOptions) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

func WithBackoff(b retry.Backoff) Option        { return func(o *FetchOptions) { o.Backoff = b } }
func WithMaxRetryDelay(d time.Duration) Option  { return func(o *FetchOptions) { o.MaxRetryDelay = d } }
func WithOnError(fn func(string, error)) Option { return func(o *FetchOptions) { o.OnError = fn } }
func WithStrategy(s Strategy) Option            { return func(o *FetchOptions) { o.Strategy = s } }
func WithCacheTime(d time.Duration) Option      { return func(o *FetchOptions) { o.CacheTime = d } }
func WithMetrics(enabled bool) Option           { return func(o *FetchOptions) { o.EnableMetrics = enabled } }

func resolveOptions(defaults FetchOptions, opts []Option) FetchOptions {
	o := defaults
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	o.StaleTime = coalesce(o.StaleTime, DefaultStaleTime)
	o.RetryDelay = coalesce(o.RetryDelay, DefaultRetryDelay)
	return o
}

// EffectiveStaleTime is the freshness window Query applies.
func (o FetchOptions) EffectiveStaleTime() time.Duration {
	if o.NoCache || o.Strategy == StrategyNetworkFirst {
		return 0
	}
	return coalesce(o.StaleTime, DefaultStaleTime)
}

// keepsDataOnError reports whether a failed refresh of an entry with data
// stays in Success.
func (o FetchOptions) keepsDataOnError() bool {
	return o.Strategy == StrategyStaleWhileRevalidate || o.Strategy == StrategyNetworkFirst
}

// RetryPolicy translates the retry fields into a retry.Policy.
func (o FetchOptions) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  o.RetryAttempts,
		BaseDelay: coalesce(o.RetryDelay, DefaultRetryDelay),
		MaxDelay:  o.MaxRetryDelay,
		Backoff:   o.Backoff,
	}
}
