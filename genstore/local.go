package genstore

import (
	"context"
	"sync"
	"time"
)

type genEntry struct {
	gen    uint64
	bumped time.Time
}

// LocalGenStore keeps generations in a process-local map.
//
// With a cleanup interval, a background loop forgets keys not bumped within
// retention. A forgotten key restarts at 0, so retention must exceed the
// longest request or mutation it guards.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]genEntry

	retention time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

// NewLocalGenStore creates a store. The cleanup loop runs only when both
// cleanupInterval and retention are positive.
func NewLocalGenStore(cleanupInterval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{
		gens:      make(map[string]genEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

func (s *LocalGenStore) cleanupLoop(every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup(s.retention)
		case <-s.stop:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[k].gen, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.gens[k]
	e.gen++
	e.bumped = time.Now()
	s.gens[k] = e
	return e.gen, nil
}

// Len reports how many keys currently carry a generation.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.gens {
		if e.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
	}
}

// Close stops the cleanup loop and waits for it. Safe to call more than
// once.
func (s *LocalGenStore) Close(ctx context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
	if s.done == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
