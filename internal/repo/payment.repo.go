package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autoparts-checkout/internal/domain"
)

type PaymentRepo interface {
	// RecordPayment inserts the payment or, for a reference seen before,
	// refreshes its status. Webhooks are redelivered, so this must be
	// repeatable.
	RecordPayment(ctx context.Context, q DBTX, payment *domain.Payment) error
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	UpsertTransfer(ctx context.Context, q DBTX, transfer *domain.Transfer) error
	FindTransfer(ctx context.Context, code string) (*domain.Transfer, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) RecordPayment(ctx context.Context, q DBTX, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, reference, amount, transaction_id, channel, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (reference) DO UPDATE
		SET status = EXCLUDED.status,
		    order_id = COALESCE(EXCLUDED.order_id, payments.order_id),
		    transaction_id = COALESCE(NULLIF(EXCLUDED.transaction_id, ''), payments.transaction_id),
		    channel = COALESCE(NULLIF(EXCLUDED.channel, ''), payments.channel),
		    updated_at = now()
	`
	_, err := q.ExecContext(
		ctx, query, p.ID, p.OrderID, p.Reference, decimal.NewFromFloat(p.Amount).Round(2), p.TransactionID, p.Channel, p.Status, p.CreatedAt,
	)
	return err
}

func (r *paymentRepo) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `
		SELECT id, order_id, reference, amount, transaction_id, channel, status, created_at, updated_at
		FROM payments WHERE reference = $1
	`
	var (
		p       domain.Payment
		orderID uuid.NullUUID
		amount  decimal.Decimal
	)
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&p.ID,
		&orderID,
		&p.Reference,
		&amount,
		&p.TransactionID,
		&p.Channel,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		p.OrderID = &orderID.UUID
	}
	p.Amount = amount.InexactFloat64()
	return &p, nil
}

func (r *paymentRepo) UpsertTransfer(ctx context.Context, q DBTX, t *domain.Transfer) error {
	query := `
		INSERT INTO transfers (transfer_code, reference, status, amount, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (transfer_code) DO UPDATE
		SET status = EXCLUDED.status,
		    reason = EXCLUDED.reason,
		    updated_at = now()
	`
	_, err := q.ExecContext(ctx, query, t.Code, t.Reference, t.Status, decimal.NewFromFloat(t.Amount).Round(2), t.Reason)
	return err
}

func (r *paymentRepo) FindTransfer(ctx context.Context, code string) (*domain.Transfer, error) {
	var (
		t      domain.Transfer
		amount decimal.Decimal
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT transfer_code, reference, status, amount, reason, updated_at FROM transfers WHERE transfer_code = $1", code,
	).Scan(&t.Code, &t.Reference, &t.Status, &amount, &t.Reason, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Amount = amount.InexactFloat64()
	return &t, nil
}
