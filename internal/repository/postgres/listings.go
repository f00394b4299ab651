package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

const listingColumns = `id, seller_id, reference_price_id, asked_price, status, proof_refs, description, created_at, updated_at`

type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES (:id, :seller_id, :reference_price_id, :asked_price, :status, :proof_refs, :description, :created_at, :updated_at)
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, l)
	return errors.Wrap(err, "failed to create listing")
}

func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	query := `
		UPDATE listings SET
			asked_price = :asked_price, status = :status, proof_refs = :proof_refs,
			description = :description, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := conn(ctx, r.db).NamedExecContext(ctx, query, l)
	if err != nil {
		return errors.Wrap(err, "failed to update listing")
	}
	return expectRow(res, errors.ErrListingNotFound)
}

func (r *ListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.findOne(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
}

// FindByIDForUpdate must run inside TxManager.WithinTx for the lock to hold.
func (r *ListingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.findOne(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
}

func (r *ListingRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	err := conn(ctx, r.db).GetContext(ctx, &l, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrListingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find listing")
	}
	return &l, nil
}

func (r *ListingRepository) List(ctx context.Context, filter domain.ListingFilter, limit, offset int) ([]*domain.Listing, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.SellerID != nil {
		add("seller_id = $%d", *filter.SellerID)
	}
	if filter.ReferencePriceID != nil {
		add("reference_price_id = $%d", *filter.ReferencePriceID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	listings := []*domain.Listing{}
	if err := conn(ctx, r.db).SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list listings")
	}
	return listings, nil
}

// expectRow maps an UPDATE that matched nothing to notFound.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
