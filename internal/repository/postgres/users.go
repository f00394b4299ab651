package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts u or refreshes the profile of the user with the same id.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, user_type, is_active, created_at)
		VALUES (:id, :email, :name, :user_type, :is_active, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			user_type = EXCLUDED.user_type,
			is_active = EXCLUDED.is_active
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, u)
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, user_type, is_active, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, user_type, is_active, created_at FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var u domain.User
	err := conn(ctx, r.db).GetContext(ctx, &u, query, arg)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return &u, nil
}

type ReferencePriceRepository struct {
	db *sqlx.DB
}

func NewReferencePriceRepository(db *sqlx.DB) *ReferencePriceRepository {
	return &ReferencePriceRepository{db: db}
}

func (r *ReferencePriceRepository) Create(ctx context.Context, rp *domain.ReferencePrice) error {
	query := `
		INSERT INTO reference_prices (id, catalog_item_id, category, face_value, created_at)
		VALUES (:id, :catalog_item_id, :category, :face_value, :created_at)
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, rp)
	return errors.Wrap(err, "failed to create reference price")
}

func (r *ReferencePriceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ReferencePrice, error) {
	var rp domain.ReferencePrice
	query := `SELECT id, catalog_item_id, category, face_value, created_at FROM reference_prices WHERE id = $1`
	err := conn(ctx, r.db).GetContext(ctx, &rp, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrReferencePriceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find reference price")
	}
	return &rp, nil
}
