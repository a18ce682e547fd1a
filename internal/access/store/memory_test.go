package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantverify/internal/access/models"
	usermodels "instantverify/internal/users/models"
	userstore "instantverify/internal/users/store"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
)

func TestInMemoryStore_ListActiveForGrantee(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	users := userstore.NewInMemoryStore()
	owner, _ := usermodels.NewUser(id.NewUserID(), "Ravi", "Kumar", "ravi@example.com", now)
	viewer, _ := usermodels.NewUser(id.NewUserID(), "Meera", "Iyer", "meera@example.com", now)
	require.NoError(t, users.Create(ctx, owner))
	require.NoError(t, users.Create(ctx, viewer))

	s := NewInMemoryStore(users)
	for _, offset := range []time.Duration{time.Hour, 0, -time.Hour} {
		require.NoError(t, s.Create(ctx, &models.AccessGrant{
			ID:          id.NewGrantID(),
			GrantedToID: viewer.ID,
			UserID:      owner.ID,
			ExpiresAt:   now.Add(offset),
		}))
	}

	grants, err := s.ListActiveForGrantee(ctx, viewer.ID, now)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "ravi@example.com", grants[0].User.Email)

	t.Run("unknown user is rejected", func(t *testing.T) {
		err := s.Create(ctx, &models.AccessGrant{ID: id.NewGrantID(), GrantedToID: id.NewUserID(), UserID: owner.ID})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
