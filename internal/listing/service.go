// Package listing owns the lifecycle of a seller's ticket listing.
package listing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, l *domain.Listing) error
	Update(ctx context.Context, l *domain.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	// FindByIDForUpdate locks the row for the rest of the enclosing transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	List(ctx context.Context, filter domain.ListingFilter, limit, offset int) ([]*domain.Listing, error)
}

type PriceChecker interface {
	Check(ctx context.Context, referencePriceID uuid.UUID, asked decimal.Decimal) (*domain.ReferencePrice, error)
}

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo   Repository
	prices PriceChecker
	tx     TxManager
	logger logger.Logger
}

func NewService(repo Repository, prices PriceChecker, tx TxManager, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		prices: prices,
		tx:     tx,
		logger: log,
	}
}

type CreateRequest struct {
	SellerID         uuid.UUID       `json:"-"`
	ReferencePriceID uuid.UUID       `json:"reference_price_id" validate:"required"`
	AskedPrice       decimal.Decimal `json:"asked_price" validate:"required,gt=0"`
	ProofRefs        []string        `json:"proof_refs" validate:"max=10,dive,max=512"`
	Description      string          `json:"description" validate:"max=2000"`
}

// UpdateRequest carries only the fields being changed.
type UpdateRequest struct {
	AskedPrice  *decimal.Decimal `json:"asked_price,omitempty"`
	ProofRefs   []string         `json:"proof_refs,omitempty" validate:"max=10,dive,max=512"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// Create validates the asked price against the markup ceiling and stores an ACTIVE listing.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*domain.Listing, error) {
	if req.SellerID == uuid.Nil {
		return nil, pkgerrors.Validation("seller is required")
	}
	if _, err := s.prices.Check(ctx, req.ReferencePriceID, req.AskedPrice); err != nil {
		s.logger.Warn("Listing rejected by price check", map[string]interface{}{
			"seller_id":          req.SellerID,
			"reference_price_id": req.ReferencePriceID,
			"asked_price":        req.AskedPrice.String(),
			"error":              err,
		})
		return nil, err
	}

	now := time.Now().UTC()
	l := &domain.Listing{
		ID:               uuid.New(),
		SellerID:         req.SellerID,
		ReferencePriceID: req.ReferencePriceID,
		AskedPrice:       req.AskedPrice,
		Status:           domain.ListingStatusActive,
		ProofRefs:        req.ProofRefs,
		Description:      strings.TrimSpace(req.Description),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create listing")
	}

	s.logger.Info("Listing created", map[string]interface{}{
		"listing_id":  l.ID,
		"seller_id":   l.SellerID,
		"asked_price": l.AskedPrice.String(),
	})
	return l, nil
}

// Update edits an unsold listing owned by sellerID. A changed price is re-validated.
func (s *Service) Update(ctx context.Context, listingID, sellerID uuid.UUID, req *UpdateRequest) (*domain.Listing, error) {
	var out *domain.Listing
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.lockOwned(ctx, listingID, sellerID, "edit")
		if err != nil {
			return err
		}

		if req.AskedPrice != nil && !req.AskedPrice.Equal(l.AskedPrice) {
			if _, err := s.prices.Check(ctx, l.ReferencePriceID, *req.AskedPrice); err != nil {
				return err
			}
			l.AskedPrice = *req.AskedPrice
		}
		if req.Description != nil {
			l.Description = strings.TrimSpace(*req.Description)
		}
		if req.ProofRefs != nil {
			l.ProofRefs = req.ProofRefs
		}
		l.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, l); err != nil {
			return pkgerrors.Wrap(err, "failed to update listing")
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Listing updated", map[string]interface{}{"listing_id": out.ID, "asked_price": out.AskedPrice.String()})
	return out, nil
}

// Cancel withdraws an unsold listing. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, listingID, sellerID uuid.UUID) (*domain.Listing, error) {
	var out *domain.Listing
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.lockOwned(ctx, listingID, sellerID, "cancel")
		if err != nil {
			return err
		}
		out = l
		if l.Status == domain.ListingStatusCancelled {
			return nil
		}
		return s.transition(ctx, l, domain.ListingStatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) lockOwned(ctx context.Context, listingID, sellerID uuid.UUID, verb string) (*domain.Listing, error) {
	l, err := s.repo.FindByIDForUpdate(ctx, listingID)
	if err != nil {
		return nil, err
	}
	// sold listings are frozen for every actor, so the state check comes first
	if l.Status == domain.ListingStatusSold {
		return nil, pkgerrors.State("cannot %s a listing in status %s", verb, l.Status)
	}
	if l.SellerID != sellerID {
		return nil, pkgerrors.Permission("only the seller can %s this listing", verb)
	}
	return l, nil
}

// Reserve moves an ACTIVE listing to RESERVED. Used when an order is created.
func (s *Service) Reserve(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	return s.internalTransition(ctx, listingID, domain.ListingStatusActive, domain.ListingStatusReserved)
}

// MarkSold moves a RESERVED listing to SOLD. Used when an order is paid.
func (s *Service) MarkSold(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	return s.internalTransition(ctx, listingID, domain.ListingStatusReserved, domain.ListingStatusSold)
}

// ReleaseReservation returns a RESERVED listing to ACTIVE. Listings in any
// other status are returned unchanged.
func (s *Service) ReleaseReservation(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var out *domain.Listing
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.FindByIDForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		out = l
		if l.Status != domain.ListingStatusReserved {
			return nil
		}
		return s.transition(ctx, l, domain.ListingStatusActive)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) internalTransition(ctx context.Context, listingID uuid.UUID, from, to domain.ListingStatus) (*domain.Listing, error) {
	var out *domain.Listing
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.FindByIDForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if l.Status != from {
			return pkgerrors.State("listing %s is %s, expected %s", l.ID, l.Status, from)
		}
		out = l
		return s.transition(ctx, l, to)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, l *domain.Listing, to domain.ListingStatus) error {
	if !l.Status.CanTransition(to) {
		return pkgerrors.State("listing cannot move from %s to %s", l.Status, to)
	}
	from := l.Status
	l.Status = to
	l.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, l); err != nil {
		return pkgerrors.Wrap(err, "failed to update listing status")
	}
	s.logger.Info("Listing status changed", map[string]interface{}{
		"listing_id": l.ID,
		"from":       from,
		"to":         to,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListingFilter, limit, offset int) ([]*domain.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, filter, limit, offset)
}
