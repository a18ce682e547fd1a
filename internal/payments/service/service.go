package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"

	"instantverify/internal/payments/models"
	"instantverify/internal/platform/metrics"
	"instantverify/internal/providers/payment"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/pricing"
	"instantverify/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	MarkPaid(ctx context.Context, paymentID id.PaymentID, gatewayPaymentID string, at time.Time) (*models.Payment, error)
}

// Credits is the slice of the credit service a confirmed payment needs.
type Credits interface {
	Balance(ctx context.Context, userID id.UserID) (int, error)
	Add(ctx context.Context, userID id.UserID, n int) (int, error)
}

// TxRunner runs fn as one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service sells verification credits through the payment gateway.
type Service struct {
	store          Store
	gateway        payment.Gateway
	credits        Credits
	tx             TxRunner
	receipts       *snowflake.Node
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

// WithReceiptNode sets the snowflake node receipts are drawn from. Instances
// sharing a database need distinct nodes.
func WithReceiptNode(node *snowflake.Node) Option {
	return func(s *Service) {
		s.receipts = node
	}
}

func New(store Store, gateway payment.Gateway, credits Credits, tx TxRunner, opts ...Option) (*Service, error) {
	s := &Service{
		store:   store,
		gateway: gateway,
		credits: credits,
		tx:      tx,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.receipts == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			return nil, err
		}
		s.receipts = node
	}
	return s, nil
}

// ConfirmResult is the paid payment and the caller's balance afterwards.
type ConfirmResult struct {
	Payment *models.Payment `json:"payment"`
	Credits int             `json:"credits"`
}

// CreateOrder opens a gateway order for one credit at the current price.
func (s *Service) CreateOrder(ctx context.Context, userID id.UserID) (*models.Payment, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	quote := pricing.Current()
	receipt := "rcpt_" + s.receipts.Generate().String()

	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		AmountPaise: quote.FinalPaise(),
		Currency:    payment.CurrencyINR,
		Receipt:     receipt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "payment gateway order failed",
			"request_id", requestcontext.RequestID(ctx),
			"receipt", receipt,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "Payment gateway unavailable")
	}

	p := &models.Payment{
		ID:             id.NewPaymentID(),
		UserID:         userID,
		Receipt:        receipt,
		AmountPaise:    quote.FinalPaise(),
		Currency:       payment.CurrencyINR,
		Status:         models.StatusCreated,
		GatewayOrderID: order.ID,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment")
	}

	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: p.ID.String(),
		Action:  string(audit.EventPaymentCreated),
	})
	return p, nil
}

// Confirm checks the gateway signature, marks the payment paid and grants one
// credit in the same unit of work. Repeating a successful confirmation with
// the same gateway payment id returns the current state without a second credit.
func (s *Service) Confirm(ctx context.Context, userID id.UserID, paymentID id.PaymentID, req models.ConfirmPaymentRequest) (*ConfirmResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	if p.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
	}
	if p.IsPaid() {
		return s.alreadyPaid(ctx, p, req.GatewayPaymentID)
	}

	if err := s.gateway.VerifyPayment(p.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
		s.logger.WarnContext(ctx, "payment signature rejected",
			"request_id", requestcontext.RequestID(ctx),
			"payment_id", p.ID.String(),
			"error", err,
		)
		return nil, dErrors.New(dErrors.CodeValidation, "payment verification failed")
	}

	var result ConfirmResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		paid, err := s.store.MarkPaid(ctx, p.ID, req.GatewayPaymentID, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		balance, err := s.credits.Add(ctx, userID, 1)
		if err != nil {
			return err
		}
		result = ConfirmResult{Payment: paid, Credits: balance}
		return nil
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		// lost a race with a concurrent confirmation
		current, findErr := s.store.FindByID(ctx, p.ID)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load payment")
		}
		return s.alreadyPaid(ctx, current, req.GatewayPaymentID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm payment")
	}

	s.metrics.IncrementPaymentsConfirmed()
	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: p.ID.String(),
		Action:  string(audit.EventPaymentConfirmed),
	})
	return &result, nil
}

func (s *Service) alreadyPaid(ctx context.Context, p *models.Payment, gatewayPaymentID string) (*ConfirmResult, error) {
	if p.GatewayPaymentID != gatewayPaymentID {
		return nil, dErrors.New(dErrors.CodeConflict, "payment already confirmed")
	}
	balance, err := s.credits.Balance(ctx, p.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch credits")
	}
	return &ConfirmResult{Payment: p, Credits: balance}, nil
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
