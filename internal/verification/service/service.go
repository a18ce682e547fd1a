package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"instantverify/internal/platform/metrics"
	"instantverify/internal/providers"
	provider "instantverify/internal/providers/verification"
	"instantverify/internal/verification/models"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/circuit"
	"instantverify/pkg/platform/middleware/device"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, v *models.Verification) error
	FindByID(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error)
	FindByIdempotencyKey(ctx context.Context, userID id.UserID, key string) (*models.Verification, error)
	UpdateResult(ctx context.Context, verificationID id.VerificationID, status models.Status, reference, reason string, at time.Time) error
}

// Credits spends the credit that pays for a submission. Consume returns a
// CodePaymentRequired domain error when the balance is empty. RecordConsumed
// is called only after the spend has committed.
type Credits interface {
	Consume(ctx context.Context, userID id.UserID) (int, error)
	RecordConsumed(ctx context.Context, userID id.UserID, remaining int)
}

// TxRunner runs fn as one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service accepts verification submissions, charges one credit for each and
// forwards them to the verification provider.
type Service struct {
	store          Store
	credits        Credits
	tx             TxRunner
	provider       provider.Provider
	breaker        *circuit.Breaker
	inflight       singleflight.Group
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

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(store Store, credits Credits, tx TxRunner, p provider.Provider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		credits:  credits,
		tx:       tx,
		provider: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New(p.ID())
	}
	return s
}

// Submit validates req, spends one credit, records the verification and asks
// the provider for a verdict. Submissions repeating an idempotency key for the
// same user return the original record without spending another credit, and
// concurrent duplicates share a single execution.
func (s *Service) Submit(ctx context.Context, userID id.UserID, idempotencyKey string, req models.CreateVerificationRequest) (*models.Verification, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		return s.submit(ctx, userID, "", req)
	}

	v, err, _ := s.inflight.Do(userID.String()+":"+idempotencyKey, func() (any, error) {
		return s.submit(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*models.Verification)
	return &out, nil
}

func (s *Service) submit(ctx context.Context, userID id.UserID, idempotencyKey string, req models.CreateVerificationRequest) (*models.Verification, error) {
	if idempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up verification")
		}
	}

	now := requestcontext.Now(ctx)
	vt := id.VerificationType(req.VerificationType)
	v := &models.Verification{
		ID:               id.NewVerificationID(),
		UserID:           userID,
		IdempotencyKey:   idempotencyKey,
		Purpose:          id.Purpose(req.Purpose),
		Country:          req.Country,
		VerificationType: vt,
		Tier:             vt.Tier(),
		AadhaarMasked:    models.MaskAadhaar(req.AadhaarNumber),
		DocumentNumber:   req.DocumentNumber,
		PersonPhoto:      req.PersonPhoto,
		DocumentImage:    req.DocumentImage,
		Status:           models.StatusPending,
		Device:           device.GetDeviceLabel(ctx),
		ClientIP:         requestcontext.ClientIP(ctx),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var remaining int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if remaining, err = s.credits.Consume(ctx, userID); err != nil {
			return err
		}
		return s.store.Create(ctx, v)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePaymentRequired) {
			return nil, err
		}
		if errors.Is(err, sentinel.ErrConflict) && idempotencyKey != "" {
			// another instance committed the same key first
			existing, findErr := s.store.FindByIdempotencyKey(ctx, userID, idempotencyKey)
			if findErr == nil {
				return existing, nil
			}
		}
		s.logger.ErrorContext(ctx, "failed to record verification",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to submit verification request")
	}

	s.credits.RecordConsumed(ctx, userID, remaining)
	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: v.ID.String(),
		Action:  string(audit.EventVerificationSubmitted),
		Purpose: string(v.Purpose),
	})

	s.forward(context.WithoutCancel(ctx), v, req.AadhaarNumber)
	s.metrics.IncrementVerification(string(v.VerificationType), string(v.Status))
	return v, nil
}

// forward asks the provider for a verdict and stores it. Any provider failure
// leaves the record pending; the credit stays spent.
func (s *Service) forward(ctx context.Context, v *models.Verification, aadhaarNumber string) {
	logger := s.logger.With(
		"request_id", requestcontext.RequestID(ctx),
		"verification_id", v.ID.String(),
		"provider", s.provider.ID(),
	)

	if !s.breaker.Allow() {
		s.metrics.IncrementProviderError(s.provider.ID(), string(providers.ErrorCircuitOpen))
		logger.WarnContext(ctx, "verification provider circuit open, leaving pending")
		return
	}

	result, err := s.provider.Verify(ctx, provider.Request{
		VerificationID:   v.ID.String(),
		VerificationType: string(v.VerificationType),
		Purpose:          string(v.Purpose),
		Country:          v.Country,
		AadhaarNumber:    aadhaarNumber,
		DocumentNumber:   v.DocumentNumber,
		PersonPhoto:      v.PersonPhoto,
		DocumentImage:    v.DocumentImage,
	})
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			logger.WarnContext(ctx, "verification provider circuit opened")
		}
		logger.WarnContext(ctx, "verification provider call failed, leaving pending",
			"category", string(providers.GetCategory(err)),
			"retryable", providers.IsRetryable(err),
			"error", err,
		)
		return
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		logger.InfoContext(ctx, "verification provider circuit closed")
	}

	status := models.Status(result.Status)
	now := requestcontext.Now(ctx)
	if err := s.store.UpdateResult(ctx, v.ID, status, result.Reference, result.Reason, now); err != nil {
		logger.ErrorContext(ctx, "failed to store provider verdict", "error", err)
		return
	}
	v.Status = status
	v.ProviderReference = result.Reference
	v.FailureReason = result.Reason
	v.UpdatedAt = now

	if status != models.StatusPending {
		s.emit(ctx, audit.Event{
			UserID:   v.UserID,
			Subject:  v.ID.String(),
			Action:   string(audit.EventVerificationCompleted),
			Purpose:  string(v.Purpose),
			Decision: string(status),
			Reason:   result.Reason,
		})
	}
}

// Get returns the caller's own verification. Records belonging to someone
// else are reported as not found.
func (s *Service) Get(ctx context.Context, userID id.UserID, verificationID id.VerificationID) (*models.Verification, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	v, err := s.store.FindByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	if v.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
	}

	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: v.ID.String(),
		Action:  string(audit.EventReportViewed),
	})
	return v, nil
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
