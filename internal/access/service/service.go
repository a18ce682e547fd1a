package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"instantverify/internal/access/models"
	"instantverify/internal/platform/metrics"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, grant *models.AccessGrant) error
	ListActiveForGrantee(ctx context.Context, granteeID id.UserID, now time.Time) ([]*models.AccessGrant, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service answers "whose reports may I see right now".
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

// ListActive returns every grant to granteeID that has not expired at the
// request time. Storage failures are returned whole; there are no partial results.
func (s *Service) ListActive(ctx context.Context, granteeID id.UserID) ([]*models.AccessGrant, error) {
	if granteeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	start := time.Now()
	grants, err := s.store.ListActiveForGrantee(ctx, granteeID, requestcontext.Now(ctx))
	s.metrics.ObserveAccessGrantList(time.Since(start))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch access grants")
	}

	s.emit(ctx, audit.Event{
		UserID: granteeID,
		Action: string(audit.EventAccessGrantsListed),
	})
	return grants, nil
}

// Grant lets granteeID see ownerID's reports for ttl.
func (s *Service) Grant(ctx context.Context, ownerID, granteeID id.UserID, ttl time.Duration) (*models.AccessGrant, error) {
	grant, err := models.NewAccessGrant(id.NewGrantID(), ownerID, granteeID, requestcontext.Now(ctx), ttl)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, grant); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create access grant")
	}
	return grant, nil
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
