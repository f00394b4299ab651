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

const disputeColumns = `id, order_id, reporter_id, reported_user_id, reason, status, admin_notes, upheld, created_at, resolved_at`

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *domain.Dispute) error {
	query := `
		INSERT INTO disputes (` + disputeColumns + `)
		VALUES (:id, :order_id, :reporter_id, :reported_user_id, :reason, :status, :admin_notes, :upheld, :created_at, :resolved_at)
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, d)
	return errors.Wrap(err, "failed to create dispute")
}

func (r *DisputeRepository) Update(ctx context.Context, d *domain.Dispute) error {
	query := `
		UPDATE disputes SET
			status = :status, admin_notes = :admin_notes, upheld = :upheld, resolved_at = :resolved_at
		WHERE id = :id
	`
	res, err := conn(ctx, r.db).NamedExecContext(ctx, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to update dispute")
	}
	return expectRow(res, errors.ErrDisputeNotFound)
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	return r.findOne(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
}

func (r *DisputeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	return r.findOne(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
}

func (r *DisputeRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Dispute, error) {
	var d domain.Dispute
	err := conn(ctx, r.db).GetContext(ctx, &d, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDisputeNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find dispute")
	}
	return &d, nil
}

func (r *DisputeRepository) List(ctx context.Context, filter domain.DisputeFilter, limit, offset int) ([]*domain.Dispute, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.ReporterID != nil {
		add("reporter_id = $%d", *filter.ReporterID)
	}
	if filter.ReportedUserID != nil {
		add("reported_user_id = $%d", *filter.ReportedUserID)
	}

	query := `SELECT ` + disputeColumns + ` FROM disputes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	disputes := []*domain.Dispute{}
	if err := conn(ctx, r.db).SelectContext(ctx, &disputes, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list disputes")
	}
	return disputes, nil
}

func (r *DisputeRepository) CountAgainst(ctx context.Context, userID uuid.UUID) (total, upheld int, err error) {
	var counts struct {
		Total  int `db:"total"`
		Upheld int `db:"upheld"`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'RESOLVED' AND upheld) AS upheld
		FROM disputes
		WHERE reported_user_id = $1
	`
	if err := conn(ctx, r.db).GetContext(ctx, &counts, query, userID); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count disputes")
	}
	return counts.Total, counts.Upheld, nil
}
