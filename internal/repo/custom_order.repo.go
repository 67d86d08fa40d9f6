package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"autoparts-checkout/internal/domain"
)

type CustomOrderRepo interface {
	Create(ctx context.Context, order *domain.CustomOrder) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.CustomOrder, error)
}

type customOrderRepo struct {
	db *sql.DB
}

func NewCustomOrderRepo(db *sql.DB) CustomOrderRepo {
	return &customOrderRepo{db: db}
}

func (r *customOrderRepo) Create(ctx context.Context, o *domain.CustomOrder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO custom_orders (id, name, email, phone, address, product_name, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.Name, o.Email, o.Phone, o.Address, o.ProductName, o.Description, o.CreatedAt,
	)
	return err
}

func (r *customOrderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.CustomOrder, error) {
	var o domain.CustomOrder
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, address, product_name, description, created_at FROM custom_orders WHERE id = $1", id,
	).Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.Address, &o.ProductName, &o.Description, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
