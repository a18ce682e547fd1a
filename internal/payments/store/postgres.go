package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"instantverify/internal/payments/models"
	"instantverify/internal/platform/postgres"
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

type paymentRow struct {
	ID               uuid.UUID      `db:"id"`
	UserID           uuid.UUID      `db:"user_id"`
	Receipt          string         `db:"receipt"`
	AmountPaise      int64          `db:"amount_paise"`
	Currency         string         `db:"currency"`
	Status           string         `db:"status"`
	GatewayOrderID   string         `db:"gateway_order_id"`
	GatewayPaymentID sql.NullString `db:"gateway_payment_id"`
	CreatedAt        time.Time      `db:"created_at"`
	PaidAt           sql.NullTime   `db:"paid_at"`
}

func (r paymentRow) toModel() *models.Payment {
	p := &models.Payment{
		ID:               id.PaymentID(r.ID),
		UserID:           id.UserID(r.UserID),
		Receipt:          r.Receipt,
		AmountPaise:      r.AmountPaise,
		Currency:         r.Currency,
		Status:           models.Status(r.Status),
		GatewayOrderID:   r.GatewayOrderID,
		GatewayPaymentID: r.GatewayPaymentID.String,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if r.PaidAt.Valid {
		t := r.PaidAt.Time.UTC()
		p.PaidAt = &t
	}
	return p
}

const paymentColumns = `id, user_id, receipt, amount_paise, currency, status,
	gateway_order_id, gateway_payment_id, created_at, paid_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Payment) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO payments (id, user_id, receipt, amount_paise, currency, status, gateway_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), uuid.UUID(p.UserID), p.Receipt, p.AmountPaise, p.Currency,
		string(p.Status), p.GatewayOrderID, p.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, uuid.UUID(paymentID))
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return scanOne(rows)
}

// MarkPaid only matches rows still in the created state, so two concurrent
// confirmations cannot both credit the user.
func (s *PostgresStore) MarkPaid(ctx context.Context, paymentID id.PaymentID, gatewayPaymentID string, at time.Time) (*models.Payment, error) {
	exec := txcontext.ExecutorFor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		UPDATE payments
		SET status = $2, gateway_payment_id = $3, paid_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+paymentColumns,
		uuid.UUID(paymentID), string(models.StatusPaid), gatewayPaymentID, at, string(models.StatusCreated),
	)
	if err != nil {
		return nil, fmt.Errorf("mark payment paid: %w", err)
	}
	p, err := scanOne(rows)
	if !errors.Is(err, sentinel.ErrNotFound) {
		return p, err
	}
	if _, findErr := s.FindByID(ctx, paymentID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrAlreadyUsed
}

func scanOne(rows *sql.Rows) (*models.Payment, error) {
	defer rows.Close()
	var found []paymentRow
	if err := sqlx.StructScan(rows, &found); err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return found[0].toModel(), nil
}
