package fetchcache

import (
	"sync"
	"sync/atomic"
)

type subscription struct {
	fn     func()
	active atomic.Bool
}

// Bus fans change notifications out to subscribers. Notification is
// coarse: every mutation notifies every subscriber, who re-reads what it
// cares about. One Bus may be shared by several caches and pagers.
//
// Notify runs callbacks outside the lock over a snapshot of the list, so a
// callback may subscribe or unsubscribe. A callback removed during a pass is
// skipped; one added during a pass runs from the next pass on.
type Bus struct {
	mu   sync.Mutex
	subs []*subscription // copy-on-write
}

func NewBus() *Bus { return &Bus{} }

// Subscribe registers fn and returns an idempotent unsubscribe func.
func (b *Bus) Subscribe(fn func()) func() {
	s := &subscription{fn: fn}
	s.active.Store(true)

	b.mu.Lock()
	next := make([]*subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			b.mu.Lock()
			next := make([]*subscription, 0, len(b.subs))
			for _, cur := range b.subs {
				if cur != s {
					next = append(next, cur)
				}
			}
			b.subs = next
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Notify() {
	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.fn()
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
