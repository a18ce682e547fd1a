package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

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

func (s *PostgresStore) Balance(ctx context.Context, userID id.UserID) (int, error) {
	var balance int
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE user_id = $1`, uuid.UUID(userID),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credit balance: %w", err)
	}
	return balance, nil
}

// Consume decrements the balance by one in a single guarded UPDATE so two
// concurrent submissions can never both spend the last credit.
func (s *PostgresStore) Consume(ctx context.Context, userID id.UserID) (int, error) {
	var balance int
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		UPDATE credit_accounts
		SET balance = balance - 1, updated_at = now()
		WHERE user_id = $1 AND balance >= 1
		RETURNING balance`, uuid.UUID(userID),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrInsufficient
	}
	if err != nil {
		return 0, fmt.Errorf("consume credit: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Add(ctx context.Context, userID id.UserID, n int) (int, error) {
	var balance int
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO credit_accounts (user_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance = credit_accounts.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance`, uuid.UUID(userID), n,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return balance, nil
}
