package store

import (
	"context"
	"sync"
	"time"

	"instantverify/pkg/platform/sentinel"
)

type memoryChallenge struct {
	Challenge
	expiresAt time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

// InMemoryStore mirrors RedisStore for tests and single-instance dev runs.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*memoryChallenge
	sends      map[string]*memoryCounter
	now        func() time.Time
}

type MemoryOption func(*InMemoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		challenges: make(map[string]*memoryChallenge),
		sends:      make(map[string]*memoryCounter),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Save(_ context.Context, key string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[key] = &memoryChallenge{
		Challenge: Challenge{Hash: append([]byte(nil), hash...)},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := c.Challenge
	return &out, nil
}

func (s *InMemoryStore) IncrementAttempts(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(key)
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, key)
	return nil
}

func (s *InMemoryStore) CountSend(_ context.Context, phone string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c, ok := s.sends[phone]
	if !ok || !now.Before(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(window)}
		s.sends[phone] = c
	}
	c.count++
	return c.count, nil
}

// live returns the challenge under key unless it has expired. Callers hold mu.
func (s *InMemoryStore) live(key string) (*memoryChallenge, bool) {
	c, ok := s.challenges[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.challenges, key)
		return nil, false
	}
	return c, true
}
