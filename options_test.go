package fetchcache

import (
	"testing"
	"time"
)

func TestResolveOptionsStaleTime(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"default", nil, DefaultStaleTime},
		{"zero falls back", []Option{WithStaleTime(0)}, DefaultStaleTime},
		{"explicit", []Option{WithStaleTime(time.Minute)}, time.Minute},
		{"no cache", []Option{WithStaleTime(time.Minute), WithNoCache()}, 0},
		{"network first", []Option{WithStrategy(StrategyNetworkFirst)}, 0},
	}
	for _, tc := range cases {
		if got := resolveOptions(FetchOptions{}, tc.opts).EffectiveStaleTime(); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
