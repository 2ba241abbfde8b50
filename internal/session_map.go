package internal

import (
	"iter"
	"sync"
	"sync/atomic"
)

// SessionMap is a concurrent map of open sessions, keyed by their tokens. The
// zero value is ready for use.
type SessionMap[K comparable, V any] struct {
	m   sync.Map
	len atomic.Int64
}

func (s *SessionMap[K, V]) Load(key K) (value V, ok bool) {
	v, ok := s.m.Load(key)
	if !ok {
		return
	}
	return v.(V), true
}

// Add stores value under key unless key is already in use. Returns whether
// value was stored.
func (s *SessionMap[K, V]) Add(key K, value V) bool {
	if _, loaded := s.m.LoadOrStore(key, value); loaded {
		return false
	}
	s.len.Add(1)
	return true
}

// Remove deletes key, returning the value it held.
func (s *SessionMap[K, V]) Remove(key K) (value V, ok bool) {
	v, loaded := s.m.LoadAndDelete(key)
	if !loaded {
		return
	}
	s.len.Add(-1)
	return v.(V), true
}

func (s *SessionMap[K, V]) Len() int { return int(s.len.Load()) }

// Keys yields every key present when iteration reaches it. Keys may be
// removed while iterating.
func (s *SessionMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		s.m.Range(func(key, _ any) bool {
			return yield(key.(K))
		})
	}
}
