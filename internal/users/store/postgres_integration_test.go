//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"instantverify/internal/users/models"
	"instantverify/internal/users/store"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func (s *PostgresStoreSuite) TestCreateFindAndVerifyPhone() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user, err := models.NewUser(id.NewUserID(), "Asha", "Rao", "asha@example.com", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, user))

	dup, _ := models.NewUser(id.NewUserID(), "Other", "Person", "asha@example.com", now)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	s.Require().NoError(s.store.MarkPhoneVerified(ctx, user.ID, "+919876543210", now))
	got, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("Asha", got.FirstName)
	s.Equal("+919876543210", got.Phone)
	s.Require().NotNil(got.PhoneVerifiedAt)
	s.WithinDuration(now, *got.PhoneVerifiedAt, time.Millisecond)

	_, err = s.store.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
