package retry

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff uint8

const (
	Exponential Backoff = iota
	Fixed
)

func (b Backoff) String() string {
	switch b {
	case Exponential:
		return "exponential"
	case Fixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// ParseBackoff accepts the String form; "" is Exponential.
func ParseBackoff(s string) (Backoff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential":
		return Exponential, nil
	case "fixed":
		return Fixed, nil
	}
	return Exponential, fmt.Errorf("retry: unknown backoff %q", s)
}

// Delay returns the wait after the given failed attempt (1-indexed).
// Exponential: BaseDelay * 2^(attempt-1). Fixed: BaseDelay. The result is
// capped at MaxDelay when MaxDelay > 0, then jittered.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay)
	if p.Backoff == Exponential {
		delay *= math.Pow(2, float64(attempt-1))
	}
	if p.MaxDelay > 0 {
		if m := float64(p.MaxDelay); delay > m {
			delay = m
		}
	}
	if p.Jitter > 0 {
		// up to ±Jitter fraction of the delay
		delay += delay * p.Jitter * (rand.Float64()*2 - 1)
	}
	switch {
	case delay < 0:
		return 0
	case delay >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
