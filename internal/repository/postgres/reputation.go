package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

type ReputationRepository struct {
	db *sqlx.DB
}

func NewReputationRepository(db *sqlx.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

// Append writes the entry and applies its delta to the running score.
func (r *ReputationRepository) Append(ctx context.Context, e *domain.ReputationEntry) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := NewTxManager(r.db).WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		query := `
			INSERT INTO reputation_entries (id, user_id, delta, reason, created_at)
			VALUES (:id, :user_id, :delta, :reason, :created_at)
		`
		if _, err := db.NamedExecContext(ctx, query, e); err != nil {
			return errors.Wrap(err, "failed to append reputation entry")
		}
		upsert := `
			INSERT INTO reputation_scores (user_id, score, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				score = reputation_scores.score + EXCLUDED.score,
				updated_at = EXCLUDED.updated_at
			RETURNING score
		`
		return errors.Wrap(db.QueryRowxContext(ctx, upsert, e.UserID, e.Delta, e.CreatedAt).Scan(&score), "failed to update reputation score")
	})
	return score, err
}

func (r *ReputationRepository) Score(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := conn(ctx, r.db).GetContext(ctx, &score, `SELECT score FROM reputation_scores WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to read reputation score")
	}
	return score, nil
}

func (r *ReputationRepository) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ReputationEntry, error) {
	entries := []*domain.ReputationEntry{}
	query := `
		SELECT id, user_id, delta, reason, created_at
		FROM reputation_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := conn(ctx, r.db).SelectContext(ctx, &entries, query, userID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list reputation entries")
	}
	return entries, nil
}
