// Package snapshot keeps the most recent scrape result per caller so it
// can be inspected after the fact.
package snapshot

import (
	"sync"
	"time"

	"github.com/mealmajor/cartsync/cart"
)

// entry holds a stored result with its creation timestamp.
type entry struct {
	result    *cart.Result
	createdAt time.Time
}

// Store is an in-memory map from identity to last scrape result.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Store holding at most maxEntries identities for ttl each.
// A background goroutine evicts expired entries every 5 minutes until
// Close is called.
func New(maxEntries int, ttl time.Duration) *Store {
	s := newStore(maxEntries, ttl, time.Now)
	go s.cleanupLoop(5 * time.Minute)
	return s
}

func newStore(maxEntries int, ttl time.Duration, now func() time.Time) *Store {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Store{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        now,
		stop:       make(chan struct{}),
	}
}

// Put records res as the latest result for identity. When the store is
// full the oldest entry is evicted.
func (s *Store) Put(identity string, res *cart.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store[identity]; !ok && len(s.store) >= s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(s.store, oldestKey)
	}

	s.store[identity] = &entry{result: res, createdAt: s.now()}
}

// Get returns the latest unexpired result for identity.
func (s *Store) Get(identity string) (*cart.Result, bool) {
	s.mu.RLock()
	e, ok := s.store[identity]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return nil, false
	}
	return e.result, true
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// Close stops the cleanup loop.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.createdAt) > s.ttl
}

// evictExpired drops every entry older than the TTL.
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.store {
		if s.expired(e) {
			delete(s.store, k)
		}
	}
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}
