package fetchcache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed is delivered by operations that report errors after Close.
	ErrClosed = errors.New("fetchcache: closed")
	// ErrNamespaceRequired is returned by New and NewPager without a namespace.
	ErrNamespaceRequired = errors.New("fetchcache: namespace is required")
)

// ColdTierError reports a failed cold-tier operation. The in-memory side of
// the operation has already been applied.
type ColdTierError struct {
	Key string
	Op  string // "del", "clear"
	Err error
}

func (e *ColdTierError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("fetchcache: cold tier %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fetchcache: cold tier %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *ColdTierError) Unwrap() error { return e.Err }

// IsCancellation reports whether err comes from context cancellation.
// Such errors are never stored in an entry.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
