package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"instantverify/internal/platform/metrics"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/pricing"
	"instantverify/pkg/requestcontext"
)

// Store holds one balance per user. Consume must be atomic with respect to
// concurrent callers and return sentinel.ErrInsufficient below one credit.
type Store interface {
	Balance(ctx context.Context, userID id.UserID) (int, error)
	Consume(ctx context.Context, userID id.UserID) (int, error)
	Add(ctx context.Context, userID id.UserID, n int) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns verification credits. One credit pays for one submission.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Balance(ctx context.Context, userID id.UserID) (int, error) {
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch credits")
	}
	return balance, nil
}

// Consume spends one credit and returns the remaining balance. It joins any
// transaction already on ctx, so a failure later in the same unit of work
// gives the credit back. Nothing is audited here; callers report the spend
// with RecordConsumed once their transaction has committed.
func (s *Service) Consume(ctx context.Context, userID id.UserID) (int, error) {
	remaining, err := s.store.Consume(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrInsufficient) {
			return 0, dErrors.New(dErrors.CodePaymentRequired, "Insufficient credits")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume credit")
	}
	return remaining, nil
}

// RecordConsumed counts and audits a committed spend.
func (s *Service) RecordConsumed(ctx context.Context, userID id.UserID, remaining int) {
	s.metrics.IncrementCreditsConsumed()
	s.emit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventCreditConsumed),
		Reason: "remaining=" + strconv.Itoa(remaining),
	})
}

// Add credits n units to userID and returns the new balance.
func (s *Service) Add(ctx context.Context, userID id.UserID, n int) (int, error) {
	if n < 1 {
		return 0, dErrors.New(dErrors.CodeValidation, "credits must be positive")
	}
	balance, err := s.store.Add(ctx, userID, n)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add credits")
	}
	return balance, nil
}

// Quote is the price of one credit.
func (s *Service) Quote() pricing.Quote {
	return pricing.Current()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}
