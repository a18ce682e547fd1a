package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"instantverify/internal/platform/postgres"
	"instantverify/internal/users/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(user.ID), user.FirstName, user.LastName, user.Email, user.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	var (
		rawID      uuid.UUID
		user       models.User
		phone      sql.NullString
		verifiedAt sql.NullTime
	)
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, phone_verified_at, created_at
		FROM users WHERE id = $1`, uuid.UUID(userID),
	).Scan(&rawID, &user.FirstName, &user.LastName, &user.Email, &phone, &verifiedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.UserID(rawID)
	user.Phone = phone.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		user.PhoneVerifiedAt = &t
	}
	return &user, nil
}

func (s *PostgresStore) MarkPhoneVerified(ctx context.Context, userID id.UserID, phone string, at time.Time) error {
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE users SET phone = $2, phone_verified_at = $3 WHERE id = $1`,
		uuid.UUID(userID), phone, at,
	)
	if err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
