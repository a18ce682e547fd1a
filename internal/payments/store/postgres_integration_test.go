//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"instantverify/internal/payments/models"
	"instantverify/internal/payments/store"
	usermodels "instantverify/internal/users/models"
	userstore "instantverify/internal/users/store"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	user     id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "payments", "users"))
	user, err := usermodels.NewUser(id.NewUserID(), "Asha", "Rao", "asha@example.com", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(userstore.NewPostgres(s.postgres.DB).Create(ctx, user))
	s.user = user.ID
}

func (s *PostgresStoreSuite) newPayment(receipt string) *models.Payment {
	return &models.Payment{
		ID:             id.NewPaymentID(),
		UserID:         s.user,
		Receipt:        receipt,
		AmountPaise:    2360,
		Currency:       "INR",
		Status:         models.StatusCreated,
		GatewayOrderID: "order_" + receipt,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	p := s.newPayment("rcpt_1")
	s.Require().NoError(s.store.Create(ctx, p))

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Receipt, got.Receipt)
	s.Equal(p.AmountPaise, got.AmountPaise)
	s.Equal(models.StatusCreated, got.Status)
	s.Nil(got.PaidAt)
	s.True(p.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestDuplicateReceiptConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPayment("rcpt_1")))
	s.ErrorIs(s.store.Create(ctx, s.newPayment("rcpt_1")), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUnknownUserIsNotFound() {
	p := s.newPayment("rcpt_1")
	p.UserID = id.NewUserID()
	s.ErrorIs(s.store.Create(context.Background(), p), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMarkPaidOnce() {
	ctx := context.Background()
	p := s.newPayment("rcpt_1")
	s.Require().NoError(s.store.Create(ctx, p))

	paid, err := s.store.MarkPaid(ctx, p.ID, "pay_1", time.Now())
	s.Require().NoError(err)
	s.Equal(models.StatusPaid, paid.Status)
	s.Equal("pay_1", paid.GatewayPaymentID)
	s.NotNil(paid.PaidAt)

	_, err = s.store.MarkPaid(ctx, p.ID, "pay_1", time.Now())
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	_, err = s.store.MarkPaid(ctx, id.NewPaymentID(), "pay_1", time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
