package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autoparts-checkout/internal/domain"
)

type OrderRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByReference(ctx context.Context, reference string) (*domain.Order, error)
	// CreateOrder reports false when an order with the same payment
	// reference already exists; nothing is written in that case.
	CreateOrder(ctx context.Context, q DBTX, order *domain.Order) (bool, error)
	// UpdateStatus moves an order from one status to another and reports
	// whether it was still in the from status.
	UpdateStatus(ctx context.Context, q DBTX, id uuid.UUID, from, to domain.OrderStatus) (bool, error)
	FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_code, checkout_id, payment_reference, status, total, request, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		order   domain.Order
		total   decimal.Decimal
		request []byte
	)
	if err := row.Scan(
		&order.ID,
		&order.OrderCode,
		&order.CheckoutID,
		&order.PaymentReference,
		&order.Status,
		&total,
		&request,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Total = total.InexactFloat64()
	if err := json.Unmarshal(request, &order.Request); err != nil {
		return nil, fmt.Errorf("decode order %s request: %w", order.ID, err)
	}
	return &order, nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	return order, err
}

func (r *orderRepo) FindByReference(ctx context.Context, reference string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE payment_reference = $1", reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return order, err
}

func (r *orderRepo) CreateOrder(ctx context.Context, q DBTX, order *domain.Order) (bool, error) {
	request, err := json.Marshal(order.Request)
	if err != nil {
		return false, fmt.Errorf("encode order request: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_reference) DO NOTHING`,
		order.ID,
		order.OrderCode,
		order.CheckoutID,
		order.PaymentReference,
		order.Status,
		decimal.NewFromFloat(order.Total).Round(2),
		request,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, q DBTX, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
		to, id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3",
		domain.OrderPending,
		time.Now().Add(-olderThan),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}
