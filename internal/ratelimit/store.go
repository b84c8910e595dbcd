// Package ratelimit throttles public form submissions with a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store counts events per key over a sliding window.
// Denied attempts are not counted against the key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// sweepEvery is how many calls the memory store handles between full sweeps of idle keys.
const sweepEvery = 1024

// MemoryStore is a single-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	calls int
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// Allow records an event for key if it fits within limit events per window.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now, window)
	}

	cutoff := now.Add(-window)
	events := prune(s.hits[key], cutoff)

	if len(events) >= limit {
		s.hits[key] = events
		return Result{Allowed: false, Remaining: 0, ResetAt: events[0].Add(window)}, nil
	}

	events = append(events, now)
	s.hits[key] = events

	return Result{
		Allowed:   true,
		Remaining: limit - len(events),
		ResetAt:   events[0].Add(window),
	}, nil
}

func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	for key, events := range s.hits {
		if events = prune(events, cutoff); len(events) == 0 {
			delete(s.hits, key)
		} else {
			s.hits[key] = events
		}
	}
}

// prune drops events at or before cutoff. events is sorted oldest first.
func prune(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}
