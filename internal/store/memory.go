package store

import (
	"container/list"
	"sync"
	"time"
)

// entry is a single cached value with its expiry deadline.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-memory cache with per-entry TTL and an
// optional LRU bound. Expired entries are dropped lazily when they are read;
// nothing sweeps the map in the background.
type MemoryStore[V any] struct {
	mu sync.Mutex

	// key: cache key, value: element in order (front = most recently used)
	data  map[string]*list.Element
	order *list.List

	// retention configuration
	ttl        time.Duration // entry lifetime (0 = never expires)
	maxEntries int           // max number of entries (0 = unlimited)

	now func() time.Time
}

// Option customises a MemoryStore.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewMemoryStore creates a new MemoryStore.
// If ttl is <= 0 entries never expire; if maxEntries is <= 0 the store is unbounded.
func NewMemoryStore[V any](ttl time.Duration, maxEntries int, opts ...Option) *MemoryStore[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryStore[V]{
		data:       make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        o.now,
	}
}

// Set stores value under key, replacing any previous entry and resetting its TTL.
func (s *MemoryStore[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	if el, ok := s.data[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToFront(el)
		return
	}

	s.data[key] = s.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})

	// Enforce retention by count.
	for s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		s.removeElement(s.order.Back())
	}
}

// Get returns the value for key. An entry past its TTL is evicted and reported
// as absent.
func (s *MemoryStore[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	el, ok := s.data[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[V])
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.removeElement(el)
		return zero, false
	}

	s.order.MoveToFront(el)
	return e.value, true
}

// Delete removes key if present.
func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.data[key]; ok {
		s.removeElement(el)
	}
}

// Len reports the number of entries held, including expired ones not yet read.
func (s *MemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore[V]) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.data, el.Value.(*entry[V]).key)
}
