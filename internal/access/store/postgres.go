package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"instantverify/internal/access/models"
	"instantverify/internal/platform/postgres"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
	txcontext "instantverify/pkg/platform/tx"
)

type PostgresStore struct {
	db  *sql.DB
	dbx *sqlx.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, dbx: postgres.Sqlx(db)}
}

type grantRow struct {
	ID          uuid.UUID `db:"id"`
	GrantedToID uuid.UUID `db:"granted_to_id"`
	UserID      uuid.UUID `db:"user_id"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
	FirstName   string    `db:"first_name"`
	LastName    string    `db:"last_name"`
	Email       string    `db:"email"`
}

func (r grantRow) toModel() *models.AccessGrant {
	return &models.AccessGrant{
		ID:          id.GrantID(r.ID),
		GrantedToID: id.UserID(r.GrantedToID),
		UserID:      id.UserID(r.UserID),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		User: models.GrantOwner{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
		},
	}
}

func (s *PostgresStore) Create(ctx context.Context, grant *models.AccessGrant) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO access_grants (id, granted_to_id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(grant.ID), uuid.UUID(grant.GrantedToID), uuid.UUID(grant.UserID), grant.ExpiresAt, grant.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert access grant: %w", err)
	}
	return nil
}

const listActiveForGranteeQuery = `
	SELECT g.id, g.granted_to_id, g.user_id, g.expires_at, g.created_at,
	       u.first_name, u.last_name, u.email
	FROM access_grants g
	JOIN users u ON u.id = g.user_id
	WHERE g.granted_to_id = $1 AND g.expires_at > $2
	ORDER BY g.expires_at, g.id`

func (s *PostgresStore) ListActiveForGrantee(ctx context.Context, granteeID id.UserID, now time.Time) ([]*models.AccessGrant, error) {
	var rows []grantRow
	if err := s.dbx.SelectContext(ctx, &rows, listActiveForGranteeQuery, uuid.UUID(granteeID), now); err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	out := make([]*models.AccessGrant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
