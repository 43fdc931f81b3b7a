package flow

import (
	"context"
	"sync"
	"time"
)

type storeEntry[T any] struct {
	value   T
	touched time.Time
}

// Store keeps bridge sessions in memory and forgets those idle for longer
// than the TTL.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*storeEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store. A non-positive ttl keeps sessions forever.
func NewStore[T any](ttl time.Duration, now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{entries: map[string]*storeEntry[T]{}, ttl: ttl, now: now}
}

// Put stores value under id.
func (s *Store[T]) Put(id string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &storeEntry[T]{value: value, touched: s.now()}
}

// Get returns the session and marks it as used.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	e, ok := s.entries[id]
	if !ok {
		return zero, false
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.entries, id)
		return zero, false
	}
	e.touched = now
	return e.value, true
}

// Delete forgets id.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len is the number of stored sessions, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts expired sessions and returns how many were removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store[T]) expired(e *storeEntry[T], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) >= s.ttl
}
