// Package memstore is the in-memory storage adapter. It backs sessions in
// contexts where no durable medium is available (tests, server-side
// rendering, degraded mode after a file store failure).
package memstore

import (
	"sync"
	"time"

	"github.com/voyago/tripsession/internal/storage"
)

type entry struct {
	value     string
	opts      storage.Options
	expiresAt time.Time // zero when the entry does not expire
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Store is a mutex guarded map with lazy TTL expiry.
// Expired entries are dropped on read; Sweep may be called (or run
// periodically via StartSweep) for memory hygiene, correctness does not
// depend on it.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	now       func() time.Time
	stopSweep chan struct{}
	sweepOnce sync.Once
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:   make(map[string]entry),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}
}

// NewWithClock creates a store with an injected clock, for tests
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

func (s *Store) Set(key string, value string, opts storage.Options) error {
	e := entry{value: value, opts: opts}
	if opts.TTL > 0 {
		e.expiresAt = s.now().Add(opts.TTL)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were dropped
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// StartSweep runs Sweep every interval until Stop is called
func (s *Store) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopSweep:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop terminates the background sweep goroutine. Idempotent.
func (s *Store) Stop() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}
