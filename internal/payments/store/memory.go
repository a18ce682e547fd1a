package store

import (
	"context"
	"sync"
	"time"

	"instantverify/internal/payments/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
	receipts map[string]id.PaymentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		payments: make(map[id.PaymentID]*models.Payment),
		receipts: make(map[string]id.PaymentID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.receipts[payment.Receipt]; ok {
		return sentinel.ErrConflict
	}
	p := *payment
	s.payments[payment.ID] = &p
	s.receipts[payment.Receipt] = payment.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}

// MarkPaid flips a created payment to paid. A payment that is already paid
// returns sentinel.ErrAlreadyUsed and is left untouched.
func (s *InMemoryStore) MarkPaid(ctx context.Context, paymentID id.PaymentID, gatewayPaymentID string, at time.Time) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.IsPaid() {
		return nil, sentinel.ErrAlreadyUsed
	}
	before := *p
	p.Status = models.StatusPaid
	p.GatewayPaymentID = gatewayPaymentID
	paidAt := at
	p.PaidAt = &paidAt
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.payments[paymentID] = &before
	})
	out := *p
	return &out, nil
}
