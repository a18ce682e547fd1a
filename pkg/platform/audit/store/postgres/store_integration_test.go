//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "instantverify/pkg/domain"
	audit "instantverify/pkg/platform/audit"
	auditpostgres "instantverify/pkg/platform/audit/store/postgres"
	txcontext "instantverify/pkg/platform/tx"
	"instantverify/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	userID := id.NewUserID()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		UserID:    userID,
		Action:    string(audit.EventPaymentConfirmed),
		Subject:   "rcpt_42",
		Timestamp: base.Add(time.Second),
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		UserID:    userID,
		Action:    string(audit.EventOTPThrottled),
		Timestamp: base,
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		UserID:    id.NewUserID(),
		Action:    string(audit.EventOTPSent),
		Timestamp: base,
	}))

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventOTPThrottled), events[0].Action)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(string(audit.EventPaymentConfirmed), events[1].Action)
	s.Equal(audit.CategoryCompliance, events[1].Category)
	s.Equal("rcpt_42", events[1].Subject)
	s.Equal(userID, events[1].UserID)
}

func (s *StoreSuite) TestAppendJoinsTransaction() {
	ctx := context.Background()
	userID := id.NewUserID()
	runner := txcontext.NewPostgresRunner(s.postgres.DB)

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			UserID:    userID,
			Action:    string(audit.EventCreditConsumed),
			Timestamp: time.Now(),
		}))
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Empty(events, "rolled back with the transaction")
}

func (s *StoreSuite) TestEventsWithoutUser() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Action:    string(audit.EventAccessGrantsListed),
		Timestamp: time.Now(),
	}))

	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM audit_events WHERE user_id IS NULL`).Scan(&n))
	s.Equal(1, n)
}
