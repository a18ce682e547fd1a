package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantverify/internal/verification/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

func newVerification(userID id.UserID, key string) *models.Verification {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return &models.Verification{
		ID:               id.NewVerificationID(),
		UserID:           userID,
		IdempotencyKey:   key,
		Purpose:          id.PurposeTenant,
		Country:          "IN",
		VerificationType: id.TypeDrivingLicense,
		Tier:             id.TierMedium,
		DocumentNumber:   "KA0120190001234",
		PersonPhoto:      "photo",
		DocumentImage:    "doc",
		Status:           models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestInMemoryStore_IdempotencyKeyPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	alice, bob := id.NewUserID(), id.NewUserID()

	first := newVerification(alice, "k1")
	require.NoError(t, s.Create(ctx, first))
	assert.ErrorIs(t, s.Create(ctx, newVerification(alice, "k1")), sentinel.ErrConflict)
	require.NoError(t, s.Create(ctx, newVerification(bob, "k1")))

	// submissions without a key never collide
	require.NoError(t, s.Create(ctx, newVerification(alice, "")))
	require.NoError(t, s.Create(ctx, newVerification(alice, "")))

	got, err := s.FindByIdempotencyKey(ctx, alice, "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.FindByIdempotencyKey(ctx, alice, "k2")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_UpdateResult(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	v := newVerification(id.NewUserID(), "")
	require.NoError(t, s.Create(ctx, v))

	at := v.CreatedAt.Add(time.Second)
	require.NoError(t, s.UpdateResult(ctx, v.ID, models.StatusVerified, "ref-1", "", at))

	got, err := s.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.Status)
	assert.Equal(t, "ref-1", got.ProviderReference)
	assert.Equal(t, at, got.UpdatedAt)

	assert.ErrorIs(t, s.UpdateResult(ctx, id.NewVerificationID(), models.StatusFailed, "", "", at), sentinel.ErrNotFound)
}

func TestInMemoryStore_CreateRolledBack(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	v := newVerification(id.NewUserID(), "k1")

	err := txcontext.NewMemoryRunner().RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Create(ctx, v); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	_, err = s.FindByID(ctx, v.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.FindByIdempotencyKey(ctx, v.UserID, "k1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
