package fetchcache

import "time"

// Entry is the stored state of one key.
//
// Data keeps the last successful payload even while the entry is Loading or
// in Error; View decides what a reader sees.
type Entry[V any] struct {
	Status  Status
	Data    V
	HasData bool
	// Err is the last failure. Under StaleWhileRevalidate and NetworkFirst a
	// failed refresh of an entry with data keeps Status at Success and only
	// records Err.
	Err error
	// Optimistic is set while an optimistic mutation is outstanding.
	Optimistic *V
	// UpdatedAt is the completion time of the last successful fetch.
	UpdatedAt time.Time
	// RetryCount counts failed attempts of the current cycle. It resets when
	// a fetch starts and is left as-is on success.
	RetryCount int

	inflight  uint64 // generation of the in-flight request, 0 if none
	touched   time.Time
	cacheTime time.Duration
	metrics   bool
}

// Fetching reports whether a request is in flight for this entry.
func (e Entry[V]) Fetching() bool { return e.inflight != 0 }

// Timestamp is UpdatedAt in Unix milliseconds, 0 before the first success.
func (e Entry[V]) Timestamp() int64 {
	if e.UpdatedAt.IsZero() {
		return 0
	}
	return e.UpdatedAt.UnixMilli()
}

// View is what a reader of a key observes.
type View[V any] struct {
	Key     string
	Status  Status
	Data    V
	HasData bool
	Err     error
	// Optimistic reports that Data is an unconfirmed overlay.
	Optimistic bool
	UpdatedAt  time.Time
	RetryCount int
	Fetching   bool
}

func viewOf[V any](key string, e Entry[V]) View[V] {
	v := View[V]{
		Key:        key,
		Status:     e.Status,
		Err:        e.Err,
		UpdatedAt:  e.UpdatedAt,
		RetryCount: e.RetryCount,
		Fetching:   e.Fetching(),
	}
	switch {
	case e.Optimistic != nil:
		v.Data, v.HasData, v.Optimistic = *e.Optimistic, true, true
	case e.HasData && (e.Status == StatusSuccess || e.Status == StatusRefetching):
		v.Data, v.HasData = e.Data, true
	}
	return v
}

// Stale reports whether data last updated at updatedAt is stale at now.
// A zero updatedAt (never fetched) is always stale.
func Stale(updatedAt time.Time, staleTime time.Duration, now time.Time) bool {
	if updatedAt.IsZero() {
		return true
	}
	return now.Sub(updatedAt) >= staleTime
}
