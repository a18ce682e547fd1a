package store

import (
	"context"
	"sync"
	"time"

	"instantverify/internal/verification/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

type idempotencyKey struct {
	userID id.UserID
	key    string
}

type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.VerificationID]*models.Verification
	byKey map[idempotencyKey]id.VerificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.VerificationID]*models.Verification),
		byKey: make(map[idempotencyKey]id.VerificationID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[v.ID]; ok {
		return sentinel.ErrConflict
	}
	k := idempotencyKey{userID: v.UserID, key: v.IdempotencyKey}
	if v.IdempotencyKey != "" {
		if _, ok := s.byKey[k]; ok {
			return sentinel.ErrConflict
		}
		s.byKey[k] = v.ID
	}
	stored := *v
	s.byID[v.ID] = &stored
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, v.ID)
		if v.IdempotencyKey != "" {
			delete(s.byKey, k)
		}
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (s *InMemoryStore) FindByIdempotencyKey(_ context.Context, userID id.UserID, key string) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vid, ok := s.byKey[idempotencyKey{userID: userID, key: key}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.byID[vid]
	return &out, nil
}

func (s *InMemoryStore) UpdateResult(_ context.Context, verificationID id.VerificationID, status models.Status, reference, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.Status = status
	v.ProviderReference = reference
	v.FailureReason = reason
	v.UpdatedAt = at
	return nil
}
