package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

// AuditRepository appends to audit_logs. The table rejects UPDATE and DELETE.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, e *domain.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, action, ip_address, metadata, created_at)
		VALUES (:id, :actor_id, :action, :ip_address, :metadata, :created_at)
	`
	_, err := conn(ctx, r.db).NamedExecContext(ctx, query, e)
	return errors.Wrap(err, "failed to create audit log")
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLogEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.ActionPrefix != "" {
		args = append(args, escapeLike(filter.ActionPrefix)+"%")
		where = append(where, fmt.Sprintf("action LIKE $%d", len(args)))
	}

	query := `SELECT id, actor_id, action, ip_address, metadata, created_at FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	entries := []*domain.AuditLogEntry{}
	if err := conn(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list audit logs")
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
