package fetchcache

import "sync"

// Store is a keyed entry store. Set is a full replace and never notifies;
// callers notify through a Bus after each mutation. There is no implicit
// eviction.
type Store[E any] struct {
	mu      sync.RWMutex
	entries map[string]E
}

func NewStore[E any]() *Store[E] {
	return &Store[E]{entries: make(map[string]E)}
}

func (s *Store[E]) Get(key string) (E, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

func (s *Store[E]) Set(key string, e E) {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *Store[E]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store[E]) Has(key string) bool {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns a snapshot of the stored keys in no particular order.
func (s *Store[E]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

func (s *Store[E]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]E)
	s.mu.Unlock()
}
