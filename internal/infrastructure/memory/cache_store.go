package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	version   int64
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// CacheStore is an in-process implementation of domain.CacheStore with the
// same version semantics as the Redis driver. Used for tests and local
// single-instance runs; expired entries are reaped lazily on access.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		entries: make(map[string]*entry),
	}
}

func (s *CacheStore) Get(ctx context.Context, key string) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", 0, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return "", 0, nil
	}

	return e.value, e.version, nil
}

func (s *CacheStore) CompareAndSet(ctx context.Context, key string, expectedVersion int64, newValue string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	current := int64(0)
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		current = e.version
	}

	if current != expectedVersion {
		return false, nil
	}

	s.entries[key] = &entry{
		value:     newValue,
		version:   current + 1,
		expiresAt: deadline(now, ttl),
	}
	return true, nil
}

func (s *CacheStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	version := int64(0)
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		version = e.version
	}

	s.entries[key] = &entry{
		value:     value,
		version:   version + 1,
		expiresAt: deadline(now, ttl),
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
