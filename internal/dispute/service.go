// Package dispute opens complaints against users and settles them, overriding
// the escrow outcome of the referenced order when needed.
package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, d *domain.Dispute) error
	Update(ctx context.Context, d *domain.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	List(ctx context.Context, filter domain.DisputeFilter, limit, offset int) ([]*domain.Dispute, error)
	// CountAgainst returns the disputes naming userID and how many were upheld.
	CountAgainst(ctx context.Context, userID uuid.UUID) (total, upheld int, err error)
}

type OrderService interface {
	Parties(ctx context.Context, orderID uuid.UUID) (buyerID, sellerID uuid.UUID, err error)
	MarkDispute(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ResolveForSeller(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type AuditService interface {
	Record(ctx context.Context, req audit.RecordRequest) (*domain.AuditLogEntry, error)
}

type ReputationService interface {
	Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, reason string) (decimal.Decimal, error)
}

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// AdverseMarkers are words in the admin notes that mark a dispute as upheld
	// against the reported user.
	AdverseMarkers []string
	// Penalty is the reputation delta per upheld dispute (negative).
	Penalty decimal.Decimal
}

type Service struct {
	repo       Repository
	orders     OrderService
	users      UserRepository
	audit      AuditService
	reputation ReputationService
	tx         TxManager
	cfg        Config
	logger     logger.Logger
}

func NewService(
	repo Repository,
	orders OrderService,
	users UserRepository,
	auditSvc AuditService,
	reputation ReputationService,
	tx TxManager,
	cfg Config,
	log logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		orders:     orders,
		users:      users,
		audit:      auditSvc,
		reputation: reputation,
		tx:         tx,
		cfg:        cfg,
		logger:     log,
	}
}

type CreateRequest struct {
	ReporterID     uuid.UUID  `json:"-"`
	ReportedUserID uuid.UUID  `json:"reported_user_id" validate:"required"`
	Reason         string     `json:"reason" validate:"required,max=2000"`
	OrderID        *uuid.UUID `json:"order_id,omitempty"`
	IPAddress      *string    `json:"-"`
}

// Create opens a dispute. An order dispute is only accepted between the
// order's buyer and seller, and its escrow is frozen on a best-effort basis:
// an order that can no longer be disputed does not block the complaint.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*domain.Dispute, error) {
	if req.ReporterID == req.ReportedUserID {
		return nil, pkgerrors.Validation("cannot open a dispute against yourself")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, pkgerrors.Validation("dispute reason is required")
	}
	if req.OrderID != nil {
		if err := s.checkParties(ctx, *req.OrderID, req.ReporterID, req.ReportedUserID); err != nil {
			return nil, err
		}
	}
	if _, err := s.users.FindByID(ctx, req.ReportedUserID); err != nil {
		return nil, err
	}

	d := &domain.Dispute{
		ID:             uuid.New(),
		OrderID:        req.OrderID,
		ReporterID:     req.ReporterID,
		ReportedUserID: req.ReportedUserID,
		Reason:         reason,
		Status:         domain.DisputeStatusOpen,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, d); err != nil {
			return pkgerrors.Wrap(err, "failed to create dispute")
		}

		meta := domain.Metadata{
			"dispute_id":       d.ID.String(),
			"reported_user_id": d.ReportedUserID.String(),
		}
		if d.OrderID != nil {
			meta["order_id"] = d.OrderID.String()
		}
		if _, err := s.audit.Record(ctx, audit.RecordRequest{
			ActorID:   &req.ReporterID,
			Action:    audit.ActionDisputeCreated,
			IPAddress: req.IPAddress,
			Metadata:  meta,
		}); err != nil {
			return err
		}

		if d.OrderID == nil {
			return nil
		}
		_, err := s.orders.MarkDispute(ctx, *d.OrderID)
		return s.ignoreNotApplicable(err, "mark order disputed", d, pkgerrors.KindState, pkgerrors.KindNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dispute opened", map[string]interface{}{
		"dispute_id":       d.ID,
		"reporter_id":      d.ReporterID,
		"reported_user_id": d.ReportedUserID,
	})
	return d, nil
}

type ResolveRequest struct {
	DisputeID   uuid.UUID  `json:"-"`
	AdminID     *uuid.UUID `json:"-"`
	AdminNotes  string     `json:"admin_notes" validate:"max=4000"`
	RefundBuyer bool       `json:"refund_buyer"`
	IPAddress   *string    `json:"-"`
}

// checkParties allows an order dispute only between its buyer and seller.
func (s *Service) checkParties(ctx context.Context, orderID, reporterID, reportedID uuid.UUID) error {
	buyerID, sellerID, err := s.orders.Parties(ctx, orderID)
	if err != nil {
		return err
	}
	var counterparty uuid.UUID
	switch reporterID {
	case buyerID:
		counterparty = sellerID
	case sellerID:
		counterparty = buyerID
	default:
		return pkgerrors.Permission("only the buyer or seller can dispute order %s", orderID)
	}
	if reportedID != counterparty {
		return pkgerrors.Validation("reported user is not the other party to order %s", orderID)
	}
	return nil
}

// Resolve closes an OPEN dispute. With RefundBuyer the referenced order is
// refunded; otherwise it is settled for the seller when that still applies.
func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*domain.Dispute, error) {
	var d *domain.Dispute
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.repo.FindByIDForUpdate(ctx, req.DisputeID)
		if err != nil {
			return err
		}
		if d.Status != domain.DisputeStatusOpen {
			return pkgerrors.State("dispute %s is already %s", d.ID, d.Status)
		}

		now := time.Now().UTC()
		notes := strings.TrimSpace(req.AdminNotes)
		d.Status = domain.DisputeStatusResolved
		d.AdminNotes = &notes
		d.ResolvedAt = &now
		d.Upheld = IsAdverse(notes, s.cfg.AdverseMarkers)
		if err := s.repo.Update(ctx, d); err != nil {
			return pkgerrors.Wrap(err, "failed to update dispute")
		}

		if d.OrderID != nil {
			if req.RefundBuyer {
				if _, err := s.orders.RefundOrder(ctx, *d.OrderID); err != nil {
					return err
				}
			} else {
				_, err := s.orders.ResolveForSeller(ctx, *d.OrderID)
				if err := s.ignoreNotApplicable(err, "settle order for seller", d, pkgerrors.KindState); err != nil {
					return err
				}
			}
		}

		if d.Upheld && !s.cfg.Penalty.IsZero() {
			reason := fmt.Sprintf("dispute %s upheld", d.ID)
			if _, err := s.reputation.Adjust(ctx, d.ReportedUserID, s.cfg.Penalty, reason); err != nil {
				return err
			}
		}

		meta := domain.Metadata{
			"dispute_id":   d.ID.String(),
			"refund_buyer": req.RefundBuyer,
			"upheld":       d.Upheld,
		}
		if d.OrderID != nil {
			meta["order_id"] = d.OrderID.String()
		}
		_, err = s.audit.Record(ctx, audit.RecordRequest{
			ActorID:   req.AdminID,
			Action:    audit.ActionDisputeResolved,
			IPAddress: req.IPAddress,
			Metadata:  meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dispute resolved", map[string]interface{}{
		"dispute_id":   d.ID,
		"refund_buyer": req.RefundBuyer,
		"upheld":       d.Upheld,
	})
	return d, nil
}

// ignoreNotApplicable drops errors of the given kinds, which mean the order is
// already past the point where the side effect matters. Anything else is returned.
func (s *Service) ignoreNotApplicable(err error, step string, d *domain.Dispute, kinds ...pkgerrors.Kind) error {
	if err == nil {
		return nil
	}
	kind := pkgerrors.KindOf(err)
	for _, k := range kinds {
		if kind == k {
			s.logger.Warn("Dispute side effect not applicable", map[string]interface{}{
				"dispute_id": d.ID,
				"step":       step,
				"error":      err,
			})
			return nil
		}
	}
	return err
}

// Impact summarises the disputes raised against a user.
type Impact struct {
	UserID          uuid.UUID       `json:"user_id"`
	TotalDisputes   int             `json:"total_disputes"`
	ResolvedAgainst int             `json:"resolved_against"`
	Penalty         decimal.Decimal `json:"reputation_penalty"`
}

// ReputationImpact is read-only; it does not touch the reputation ledger.
func (s *Service) ReputationImpact(ctx context.Context, userID uuid.UUID) (*Impact, error) {
	total, upheld, err := s.repo.CountAgainst(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to count disputes")
	}
	return &Impact{
		UserID:          userID,
		TotalDisputes:   total,
		ResolvedAgainst: upheld,
		Penalty:         s.cfg.Penalty.Mul(decimal.NewFromInt(int64(upheld))),
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.DisputeFilter, limit, offset int) ([]*domain.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, limit, max(offset, 0))
}

// IsAdverse reports whether notes contain any marker as whole words, ignoring case.
func IsAdverse(notes string, markers []string) bool {
	words := tokenize(notes)
	for _, marker := range markers {
		if containsSequence(words, tokenize(marker)) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsSequence(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j := range seq {
			if words[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
