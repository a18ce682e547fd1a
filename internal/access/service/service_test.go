package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"instantverify/internal/access/models"
	"instantverify/internal/access/store"
	usermodels "instantverify/internal/users/models"
	userstore "instantverify/internal/users/store"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/audit/publisher"
	auditmemory "instantverify/pkg/platform/audit/store/memory"
	"instantverify/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	users   *userstore.InMemoryStore
	grants  *store.InMemoryStore
	audit   *auditmemory.InMemoryStore
	service *Service
	now     time.Time
	owner   *usermodels.User
	viewer  *usermodels.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctx := context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.users = userstore.NewInMemoryStore()
	s.grants = store.NewInMemoryStore(s.users)
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.grants, WithAuditPublisher(publisher.NewPublisher(s.audit)))

	var err error
	s.owner, err = usermodels.NewUser(id.NewUserID(), "Ravi", "Kumar", "ravi@example.com", s.now)
	s.Require().NoError(err)
	s.viewer, err = usermodels.NewUser(id.NewUserID(), "Meera", "Iyer", "meera@example.com", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(ctx, s.owner))
	s.Require().NoError(s.users.Create(ctx, s.viewer))
}

func (s *ServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) seed(expiresAt time.Time) *models.AccessGrant {
	g := &models.AccessGrant{
		ID:          id.NewGrantID(),
		GrantedToID: s.viewer.ID,
		UserID:      s.owner.ID,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.grants.Create(context.Background(), g))
	return g
}

func (s *ServiceSuite) TestListActive_ExcludesExpiredAndBoundary() {
	active := s.seed(s.now.Add(time.Hour))
	s.seed(s.now)                   // expires exactly now: excluded
	s.seed(s.now.Add(-time.Minute)) // already expired

	grants, err := s.service.ListActive(s.ctxAt(s.now), s.viewer.ID)
	s.Require().NoError(err)
	s.Require().Len(grants, 1)
	s.Equal(active.ID, grants[0].ID)
	s.Equal("Ravi", grants[0].User.FirstName)
	s.Equal("Kumar", grants[0].User.LastName)
	s.Equal("ravi@example.com", grants[0].User.Email)
}

func (s *ServiceSuite) TestListActive_OnlyGrantsToCaller() {
	s.seed(s.now.Add(time.Hour))

	grants, err := s.service.ListActive(s.ctxAt(s.now), s.owner.ID)
	s.Require().NoError(err)
	s.Empty(grants)
}

func (s *ServiceSuite) TestListActive_OrderedByExpiry() {
	later := s.seed(s.now.Add(48 * time.Hour))
	sooner := s.seed(s.now.Add(time.Hour))

	grants, err := s.service.ListActive(s.ctxAt(s.now), s.viewer.ID)
	s.Require().NoError(err)
	s.Require().Len(grants, 2)
	s.Equal(sooner.ID, grants[0].ID)
	s.Equal(later.ID, grants[1].ID)
}

func (s *ServiceSuite) TestListActive_EmitsAudit() {
	_, err := s.service.ListActive(s.ctxAt(s.now), s.viewer.ID)
	s.Require().NoError(err)

	events, err := s.audit.ListByUser(context.Background(), s.viewer.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventAccessGrantsListed), events[0].Action)
}

func (s *ServiceSuite) TestListActive_Unauthenticated() {
	_, err := s.service.ListActive(s.ctxAt(s.now), id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestGrant() {
	grant, err := s.service.Grant(s.ctxAt(s.now), s.owner.ID, s.viewer.ID, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(s.now.Add(24*time.Hour), grant.ExpiresAt)

	_, err = s.service.Grant(s.ctxAt(s.now), s.owner.ID, s.owner.ID, time.Hour)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Grant(s.ctxAt(s.now), s.owner.ID, id.NewUserID(), time.Hour)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type failingStore struct{}

func (failingStore) Create(context.Context, *models.AccessGrant) error { return errors.New("db down") }
func (failingStore) ListActiveForGrantee(context.Context, id.UserID, time.Time) ([]*models.AccessGrant, error) {
	return nil, errors.New("db down")
}

func TestListActive_StorageFailureIsInternal(t *testing.T) {
	svc := New(failingStore{})
	grants, err := svc.ListActive(context.Background(), id.NewUserID())
	require.Error(t, err)
	assert.Nil(t, grants)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Equal(t, "Failed to fetch access grants", dErrors.MessageOf(err))
}
