package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

const orderColumns = `o.id, o.buyer_id, o.listing_id, o.total_amount, o.platform_fee, o.payment_status,
	o.escrow_status, o.payment_method, o.payment_reference, o.created_at, o.updated_at, o.completed_at`

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, buyer_id, listing_id, total_amount, platform_fee, payment_status,
			escrow_status, payment_method, payment_reference, created_at, updated_at, completed_at
		) VALUES (
			:id, :buyer_id, :listing_id, :total_amount, :platform_fee, :payment_status,
			:escrow_status, :payment_method, :payment_reference, :created_at, :updated_at, :completed_at
		)
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, o)
	return errors.Wrap(err, "failed to create order")
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE orders SET
			payment_status = :payment_status, escrow_status = :escrow_status,
			updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id
	`
	res, err := conn(ctx, r.db).NamedExecContext(ctx, query, o)
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}
	return expectRow(res, errors.ErrOrderNotFound)
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := conn(ctx, r.db).GetContext(ctx, &o, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order")
	}
	return &o, nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.buyer_id = $1 ORDER BY o.created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, buyerID, limit, offset)
}

// ListBySeller resolves the seller through the order's listing.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN listings l ON l.id = o.listing_id
		WHERE l.seller_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, sellerID, limit, offset)
}

func (r *OrderRepository) list(ctx context.Context, query string, userID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	if err := conn(ctx, r.db).SelectContext(ctx, &orders, query, userID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}
