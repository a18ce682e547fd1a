package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"instantverify/internal/credits/store"
	"instantverify/internal/platform/metrics"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/audit/publisher"
	auditmemory "instantverify/pkg/platform/audit/store/memory"
	txcontext "instantverify/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	service *Service
	user    id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store,
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
	)
	s.user = id.NewUserID()
}

func (s *ServiceSuite) TestBalanceRequiresUser() {
	_, err := s.service.Balance(context.Background(), id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestConsumeWithoutCreditIsPaymentRequired() {
	_, err := s.service.Consume(context.Background(), s.user)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentRequired))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.CreditsConsumed))
}

func (s *ServiceSuite) TestConsumeSpendsOneCreditWithoutAuditing() {
	ctx := context.Background()
	_, err := s.service.Add(ctx, s.user, 2)
	s.Require().NoError(err)

	remaining, err := s.service.Consume(ctx, s.user)
	s.Require().NoError(err)
	s.Equal(1, remaining)

	balance, err := s.service.Balance(ctx, s.user)
	s.Require().NoError(err)
	s.Equal(1, balance)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.CreditsConsumed))
	events, err := s.audit.ListByUser(ctx, s.user)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestRecordConsumedCountsAndAudits() {
	ctx := context.Background()
	s.service.RecordConsumed(ctx, s.user, 1)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CreditsConsumed))
	events, err := s.audit.ListByUser(ctx, s.user)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventCreditConsumed), events[0].Action)
	s.Equal("remaining=1", events[0].Reason)
}

func (s *ServiceSuite) TestConsumeRolledBackWithTransaction() {
	ctx := context.Background()
	_, err := s.service.Add(ctx, s.user, 1)
	s.Require().NoError(err)

	err = txcontext.NewMemoryRunner().RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.service.Consume(ctx, s.user); err != nil {
			return err
		}
		return errors.New("record insert failed")
	})
	s.Require().Error(err)

	balance, _ := s.service.Balance(ctx, s.user)
	s.Equal(1, balance)
}

func (s *ServiceSuite) TestAddRejectsNonPositive() {
	_, err := s.service.Add(context.Background(), s.user, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestQuoteIsCurrentPrice() {
	q := s.service.Quote()
	s.InDelta(23.60, q.FinalAmount(), 0.001)
	s.Equal(int64(2360), q.FinalPaise())
}
