package store

import (
	"context"
	"sync"

	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

// InMemoryStore keeps balances in a map. Mutations made inside a
// txcontext.MemoryRunner unit are undone if the unit fails.
type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[id.UserID]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[id.UserID]int)}
}

func (s *InMemoryStore) Balance(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

func (s *InMemoryStore) Consume(ctx context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[userID] < 1 {
		return s.balances[userID], sentinel.ErrInsufficient
	}
	s.balances[userID]--
	txcontext.OnRollback(ctx, func() { s.adjust(userID, 1) })
	return s.balances[userID], nil
}

func (s *InMemoryStore) Add(ctx context.Context, userID id.UserID, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += n
	txcontext.OnRollback(ctx, func() { s.adjust(userID, -n) })
	return s.balances[userID], nil
}

func (s *InMemoryStore) adjust(userID id.UserID, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += delta
}
