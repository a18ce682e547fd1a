package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"instantverify/internal/phone/store"
	"instantverify/internal/platform/metrics"
	"instantverify/internal/providers/sms"
	usermodels "instantverify/internal/users/models"
	userstore "instantverify/internal/users/store"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/audit/publisher"
	auditmemory "instantverify/pkg/platform/audit/store/memory"
	"instantverify/pkg/requestcontext"
)

var codePattern = regexp.MustCompile(`^(\d{6}) is your`)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	sender  *sms.MockSender
	users   *userstore.InMemoryStore
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	service *Service
	user    *usermodels.User
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.store = store.NewInMemoryStore()
	s.sender = sms.NewMockSender(nil)
	s.users = userstore.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, s.sender, s.users,
		WithBcryptCost(bcrypt.MinCost),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
	)

	var err error
	s.user, err = usermodels.NewUser(id.NewUserID(), "Kiran", "Shah", "kiran@example.com", now)
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, s.user))
}

const testPhone = id.Phone("+919876543210")

func (s *ServiceSuite) newUser(email string) *usermodels.User {
	u, err := usermodels.NewUser(id.NewUserID(), "Asha", "Rao", email, requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *ServiceSuite) lastCode(phone string) string {
	msg, ok := s.sender.Last(phone)
	s.Require().True(ok, "no sms sent to %s", phone)
	m := codePattern.FindStringSubmatch(msg.Body)
	s.Require().Len(m, 2, "unexpected sms body %q", msg.Body)
	return m[1]
}

func (s *ServiceSuite) TestSendAndVerify() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "98765 43210"))
	code := s.lastCode("+919876543210")

	s.Require().NoError(s.service.VerifyOTP(s.ctx, s.user.ID, "+91 98765 43210", code))

	got, err := s.users.FindByID(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Equal("+919876543210", got.Phone)
	s.Require().NotNil(got.PhoneVerifiedAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OTPSent))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("verified")))

	// the challenge is single use
	err = s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	events, err := s.audit.ListByUser(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventOTPSent), events[0].Action)
	s.Equal(string(audit.EventPhoneVerified), events[1].Action)
	s.Equal("*********3210", events[1].Subject)
}

func (s *ServiceSuite) TestWrongCodeIsInvalid() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", wrong)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("Invalid OTP", dErrors.MessageOf(err))

	c, err := s.store.Get(s.ctx, challengeKey(s.user.ID, testPhone))
	s.Require().NoError(err)
	s.Equal(1, c.Attempts)
}

func (s *ServiceSuite) TestAttemptsAreBounded() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range DefaultConfig.MaxAttempts {
		_ = s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", wrong)
	}

	// the right code no longer works once the attempts are spent
	err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	got, _ := s.users.FindByID(s.ctx, s.user.ID)
	s.Nil(got.PhoneVerifiedAt)
}

func (s *ServiceSuite) TestConcurrentWrongGuessesAreBounded() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	const guesses = 40
	var wg sync.WaitGroup
	for range guesses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", wrong)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		}()
	}
	wg.Wait()

	checked := testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("invalid"))
	s.Equal(float64(DefaultConfig.MaxAttempts), checked, "only MaxAttempts guesses are compared")

	events, err := s.audit.ListByUser(s.ctx, s.user.ID)
	s.Require().NoError(err)
	failed := 0
	for _, e := range events {
		if e.Action == string(audit.EventOTPFailed) {
			failed++
		}
	}
	s.Equal(DefaultConfig.MaxAttempts, failed)

	err = s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	got, err := s.users.FindByID(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Nil(got.PhoneVerifiedAt)
}

func (s *ServiceSuite) TestExtraGuessIsRejectedWithoutComparing() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")
	key := challengeKey(s.user.ID, testPhone)
	for range DefaultConfig.MaxAttempts {
		_, err := s.store.IncrementAttempts(s.ctx, key)
		s.Require().NoError(err)
	}

	err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("Too many incorrect attempts. Please request a new OTP.", dErrors.MessageOf(err))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("exhausted")))

	_, err = s.store.Get(s.ctx, key)
	s.Error(err, "an exhausted challenge is discarded")
}

func (s *ServiceSuite) TestCodeOnlyVerifiesForRequestingUser() {
	other := s.newUser("asha@example.com")
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")

	err := s.service.VerifyOTP(s.ctx, other.ID, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	got, err := s.users.FindByID(s.ctx, other.ID)
	s.Require().NoError(err)
	s.Nil(got.PhoneVerifiedAt)

	s.Require().NoError(s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code))
}

func (s *ServiceSuite) TestSendByAnotherUserKeepsOutstandingChallenge() {
	other := s.newUser("asha@example.com")
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	code := s.lastCode("+919876543210")

	s.Require().NoError(s.service.SendOTP(s.ctx, other.ID, "9876543210"))

	s.Require().NoError(s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", code))
}

func (s *ServiceSuite) TestSendLimit() {
	for range DefaultConfig.SendLimit {
		s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	}

	err := s.service.SendOTP(s.ctx, s.user.ID, "9876543210")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
	s.Len(s.sender.Messages(), DefaultConfig.SendLimit)
}

func (s *ServiceSuite) TestResendReplacesCode() {
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	first := s.lastCode("+919876543210")
	s.Require().NoError(s.service.SendOTP(s.ctx, s.user.ID, "9876543210"))
	second := s.lastCode("+919876543210")

	if first != second {
		err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", first)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	}
	s.Require().NoError(s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", second))
}

func (s *ServiceSuite) TestInvalidPhone() {
	err := s.service.SendOTP(s.ctx, s.user.ID, "12345")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.sender.Messages())

	err = s.service.VerifyOTP(s.ctx, s.user.ID, "not a phone", "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSMSFailureIsUnavailableAndLeavesNoChallenge() {
	s.sender.Err = errors.New("vendor down")

	err := s.service.SendOTP(s.ctx, s.user.ID, "9876543210")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = s.store.Get(s.ctx, challengeKey(s.user.ID, testPhone))
	s.Error(err)
}

func (s *ServiceSuite) TestVerifyWithoutChallenge() {
	err := s.service.VerifyOTP(s.ctx, s.user.ID, "9876543210", "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGenerateCode(t *testing.T) {
	for _, n := range []int{4, 6, 10} {
		code, err := generateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		assert.Regexp(t, `^\d+$`, code)
	}
}
