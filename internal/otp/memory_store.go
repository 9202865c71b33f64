package otp

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	Entry
	expires time.Time
}

// MemoryStore is the in-process Store used when Redis is not reachable.
// Codes do not survive a restart and are not shared between replicas.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memEntry), now: time.Now}
}

// live returns the entry for email, dropping it if it has expired.  The
// caller must hold mu.
func (s *MemoryStore) live(email string) (memEntry, bool) {
	e, ok := s.m[email]
	if !ok {
		return memEntry{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.m, email)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Save(_ context.Context, email string, e Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[email] = memEntry{Entry: e, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(email)
	if !ok {
		return Entry{}, ErrNoCode
	}
	return e.Entry, nil
}

func (s *MemoryStore) IncrAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(email)
	if !ok {
		return 0, ErrNoCode
	}
	e.Attempts++
	s.m[email] = e
	return e.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, email)
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, email, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(email)
	if !ok || e.Hash != hash {
		return false, nil
	}
	delete(s.m, email)
	return true, nil
}
