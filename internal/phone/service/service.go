package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"instantverify/internal/phone/store"
	"instantverify/internal/platform/metrics"
	"instantverify/internal/providers/sms"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/requestcontext"
)

// Store holds challenges under a per-account key and counts sends per phone.
// IncrementAttempts must be atomic and return the count including this guess.
type Store interface {
	Save(ctx context.Context, key string, hash []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (*store.Challenge, error)
	IncrementAttempts(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
	CountSend(ctx context.Context, phone string, window time.Duration) (int, error)
}

// Users records a verified phone on the account.
type Users interface {
	MarkPhoneVerified(ctx context.Context, userID id.UserID, phone string, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config bounds OTP issuance and checking.
type Config struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	SendLimit   int
	SendWindow  time.Duration
}

// DefaultConfig is a 6 digit code valid for 5 minutes, 5 guesses, and at most
// 3 sends per phone every 10 minutes.
var DefaultConfig = Config{
	Length:      6,
	TTL:         5 * time.Minute,
	MaxAttempts: 5,
	SendLimit:   3,
	SendWindow:  10 * time.Minute,
}

const (
	messageInvalidOTP    = "Invalid OTP"
	messageTooManySends  = "Too many OTP requests. Please try again later."
	messageSendFailed    = "Failed to send OTP"
	messageInvalidPhone  = "Invalid phone number"
	messageAttemptsSpent = "Too many incorrect attempts. Please request a new OTP."
)

// Service issues and checks phone OTPs.
type Service struct {
	store          Store
	sender         sms.Sender
	users          Users
	cfg            Config
	bcryptCost     int
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

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithBcryptCost lowers the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(store Store, sender sms.Sender, users Users, opts ...Option) *Service {
	s := &Service{
		store:      store,
		sender:     sender,
		users:      users,
		cfg:        DefaultConfig,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendOTP texts a fresh code to rawPhone, replacing the caller's outstanding
// one. Challenges requested by other accounts for the same phone are untouched.
func (s *Service) SendOTP(ctx context.Context, userID id.UserID, rawPhone string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	phone, err := id.ParsePhone(rawPhone)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, messageInvalidPhone)
	}
	requestID := requestcontext.RequestID(ctx)

	sends, err := s.store.CountSend(ctx, phone.String(), s.cfg.SendWindow)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, messageSendFailed)
	}
	if sends > s.cfg.SendLimit {
		s.logger.WarnContext(ctx, "otp send limit reached",
			"request_id", requestID,
			"phone", phone.Masked(),
			"sends", sends,
		)
		s.emit(ctx, audit.Event{
			UserID:  userID,
			Subject: phone.Masked(),
			Action:  string(audit.EventOTPThrottled),
		})
		return dErrors.New(dErrors.CodeTooManyRequests, messageTooManySends)
	}

	code, err := generateCode(s.cfg.Length)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, messageSendFailed)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, messageSendFailed)
	}
	key := challengeKey(userID, phone)
	if err := s.store.Save(ctx, key, hash, s.cfg.TTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, messageSendFailed)
	}

	message := fmt.Sprintf("%s is your InstantVerify verification code. It expires in %d minutes.",
		code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.Send(ctx, phone.String(), message); err != nil {
		_ = s.store.Delete(ctx, key)
		s.logger.ErrorContext(ctx, "sms delivery failed",
			"request_id", requestID,
			"phone", phone.Masked(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, messageSendFailed)
	}

	s.metrics.IncrementOTPSent()
	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: phone.Masked(),
		Action:  string(audit.EventOTPSent),
	})
	return nil
}

// VerifyOTP checks code against the caller's outstanding challenge for
// rawPhone. A correct code consumes the challenge and marks the phone verified
// on the caller's account. Every guess is counted before the code is compared,
// so at most MaxAttempts guesses are ever checked per challenge.
func (s *Service) VerifyOTP(ctx context.Context, userID id.UserID, rawPhone, code string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "Unauthorized")
	}
	phone, err := id.ParsePhone(rawPhone)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, messageInvalidPhone)
	}
	if code == "" {
		return dErrors.New(dErrors.CodeValidation, messageInvalidOTP)
	}
	key := challengeKey(userID, phone)

	challenge, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementOTPVerification("missing")
			return dErrors.New(dErrors.CodeValidation, messageInvalidOTP)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify OTP")
	}

	attempts, err := s.store.IncrementAttempts(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementOTPVerification("missing")
			return dErrors.New(dErrors.CodeValidation, messageInvalidOTP)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify OTP")
	}
	if attempts > s.cfg.MaxAttempts {
		_ = s.store.Delete(ctx, key)
		s.metrics.IncrementOTPVerification("exhausted")
		return dErrors.New(dErrors.CodeValidation, messageAttemptsSpent)
	}

	if err := bcrypt.CompareHashAndPassword(challenge.Hash, []byte(code)); err != nil {
		if attempts >= s.cfg.MaxAttempts {
			_ = s.store.Delete(ctx, key)
		}
		s.metrics.IncrementOTPVerification("invalid")
		s.emit(ctx, audit.Event{
			UserID:  userID,
			Subject: phone.Masked(),
			Action:  string(audit.EventOTPFailed),
		})
		return dErrors.New(dErrors.CodeValidation, messageInvalidOTP)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify OTP")
	}
	if err := s.users.MarkPhoneVerified(ctx, userID, phone.String(), requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify OTP")
	}

	s.metrics.IncrementOTPVerification("verified")
	s.emit(ctx, audit.Event{
		UserID:  userID,
		Subject: phone.Masked(),
		Action:  string(audit.EventPhoneVerified),
	})
	return nil
}

// challengeKey scopes a challenge to the account that requested it.
func challengeKey(userID id.UserID, phone id.Phone) string {
	return userID.String() + ":" + phone.String()
}

// generateCode returns n uniformly random decimal digits.
func generateCode(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
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
