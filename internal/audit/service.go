// Package audit keeps the append-only log of sensitive marketplace actions.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

// Actions written by the core services.
const (
	ActionDisputeCreated     = "dispute.created"
	ActionDisputeResolved    = "dispute.resolved"
	ActionChatMessageFlagged = "chat.message_flagged"
	ActionChatRoomBlocked    = "chat.room_blocked"
	ActionAdminRequest       = "admin.request"
)

type Repository interface {
	Create(ctx context.Context, e *domain.AuditLogEntry) error
	List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLogEntry, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

type RecordRequest struct {
	ActorID   *uuid.UUID
	Action    string
	IPAddress *string
	Metadata  domain.Metadata
}

// Record appends an entry. Entries are never updated or deleted.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*domain.AuditLogEntry, error) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, pkgerrors.Validation("audit action is required")
	}
	meta := req.Metadata
	if meta == nil {
		meta = domain.Metadata{}
	}

	e := &domain.AuditLogEntry{
		ID:        uuid.New(),
		ActorID:   req.ActorID,
		Action:    action,
		IPAddress: req.IPAddress,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("Failed to write audit entry", map[string]interface{}{"action": action, "error": err})
		return nil, pkgerrors.Wrap(err, "failed to write audit entry")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.repo.List(ctx, filter, limit, max(offset, 0))
}

// Suspicious returns the most recent moderation findings.
func (s *Service) Suspicious(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	return s.List(ctx, domain.AuditFilter{ActionPrefix: ActionChatMessageFlagged}, limit, 0)
}
