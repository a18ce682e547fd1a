package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"instantverify/internal/platform/postgres"
	"instantverify/internal/verification/models"
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

type verificationRow struct {
	ID                uuid.UUID      `db:"id"`
	UserID            uuid.UUID      `db:"user_id"`
	IdempotencyKey    sql.NullString `db:"idempotency_key"`
	Purpose           string         `db:"purpose"`
	Country           string         `db:"country"`
	VerificationType  string         `db:"verification_type"`
	Tier              string         `db:"tier"`
	AadhaarMasked     sql.NullString `db:"aadhaar_masked"`
	DocumentNumber    string         `db:"document_number"`
	PersonPhoto       string         `db:"person_photo"`
	DocumentImage     string         `db:"document_image"`
	Status            string         `db:"status"`
	ProviderReference sql.NullString `db:"provider_reference"`
	FailureReason     sql.NullString `db:"failure_reason"`
	Device            string         `db:"device"`
	ClientIP          string         `db:"client_ip"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r verificationRow) toModel() *models.Verification {
	return &models.Verification{
		ID:                id.VerificationID(r.ID),
		UserID:            id.UserID(r.UserID),
		IdempotencyKey:    r.IdempotencyKey.String,
		Purpose:           id.Purpose(r.Purpose),
		Country:           r.Country,
		VerificationType:  id.VerificationType(r.VerificationType),
		Tier:              id.Tier(r.Tier),
		AadhaarMasked:     r.AadhaarMasked.String,
		DocumentNumber:    r.DocumentNumber,
		PersonPhoto:       r.PersonPhoto,
		DocumentImage:     r.DocumentImage,
		Status:            models.Status(r.Status),
		ProviderReference: r.ProviderReference.String,
		FailureReason:     r.FailureReason.String,
		Device:            r.Device,
		ClientIP:          r.ClientIP,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const verificationColumns = `id, user_id, idempotency_key, purpose, country, verification_type, tier,
	aadhaar_masked, document_number, person_photo, document_image, status,
	provider_reference, failure_reason, device, client_ip, created_at, updated_at`

// Create inserts v. A repeated (user, idempotency key) pair returns
// sentinel.ErrConflict; NULL keys never collide.
func (s *PostgresStore) Create(ctx context.Context, v *models.Verification) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verifications (`+verificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		uuid.UUID(v.ID), uuid.UUID(v.UserID), nullable(v.IdempotencyKey), string(v.Purpose), v.Country,
		string(v.VerificationType), string(v.Tier), nullable(v.AadhaarMasked), v.DocumentNumber,
		v.PersonPhoto, v.DocumentImage, string(v.Status), nullable(v.ProviderReference),
		nullable(v.FailureReason), v.Device, v.ClientIP, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	return s.findOne(ctx, `SELECT `+verificationColumns+` FROM verifications WHERE id = $1`, uuid.UUID(verificationID))
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, userID id.UserID, key string) (*models.Verification, error) {
	return s.findOne(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE user_id = $1 AND idempotency_key = $2`,
		uuid.UUID(userID), key)
}

func (s *PostgresStore) UpdateResult(ctx context.Context, verificationID id.VerificationID, status models.Status, reference, reason string, at time.Time) error {
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE verifications
		SET status = $2, provider_reference = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(verificationID), string(status), nullable(reference), nullable(reason), at,
	)
	if err != nil {
		return fmt.Errorf("update verification result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification result: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.Verification, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find verification: %w", err)
	}
	defer rows.Close()
	var found []verificationRow
	if err := sqlx.StructScan(rows, &found); err != nil {
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return found[0].toModel(), nil
}
