// Package store provides the observable state container underlying the
// session and preference stores: a mutable value with atomic updates and
// synchronous subscriber notification. Persistence and instrumentation are
// layered on top as explicit decorators, not baked in.
package store

import "sync"

// Store holds a value of type T and notifies subscribers after every
// commit. All mutation is serialised by an internal mutex, so from the
// perspective of any caller an update is atomic: no subscriber or reader
// ever observes a half-applied state.
type Store[T any] struct {
	mu    sync.Mutex
	state T
	subs  map[int]func(T)
	next  int
}

// New creates a Store seeded with initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{state: initial, subs: make(map[int]func(T))}
}

// GetState returns a snapshot of the current state. Side-effect-free.
func (s *Store[T]) GetState() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState applies mutate to the current state and commits the result,
// then notifies all subscribers synchronously with the new state.
// Subscribers run outside the lock; a subscriber that mutates the store
// re-enters through the normal path and cannot deadlock.
func (s *Store[T]) SetState(mutate func(T) T) {
	s.mu.Lock()
	s.state = mutate(s.state)
	next := s.state
	listeners := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Subscribe registers fn to be called after every commit and returns an
// unsubscribe func. fn is not called with the current state at subscribe
// time; callers that need it read GetState first.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
