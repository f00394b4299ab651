// Package order implements the order and escrow state machine.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, o *domain.Order) error
	Update(ctx context.Context, o *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error)
}

// ListingService is the subset of the listing lifecycle the escrow engine drives.
type ListingService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	Reserve(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	MarkSold(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	ReleaseReservation(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
}

type ReputationService interface {
	Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, reason string) (decimal.Decimal, error)
}

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// PlatformFeeRate is the fraction of the asked price charged on top.
	PlatformFeeRate decimal.Decimal
	// ReleaseReputationDelta is credited to the seller when escrow is released.
	ReleaseReputationDelta decimal.Decimal
}

type Service struct {
	repo       Repository
	listings   ListingService
	reputation ReputationService
	tx         TxManager
	cfg        Config
	logger     logger.Logger
}

func NewService(repo Repository, listings ListingService, reputation ReputationService, tx TxManager, cfg Config, log logger.Logger) *Service {
	return &Service{
		repo:       repo,
		listings:   listings,
		reputation: reputation,
		tx:         tx,
		cfg:        cfg,
		logger:     log,
	}
}

type CreateRequest struct {
	BuyerID       uuid.UUID `json:"-"`
	ListingID     uuid.UUID `json:"listing_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"max=50"`
}

// Fee returns the platform fee for asked, rounded to cents, and the buyer's total.
func (s *Service) Fee(asked decimal.Decimal) (fee, total decimal.Decimal) {
	fee = asked.Mul(s.cfg.PlatformFeeRate).Round(2)
	return fee, asked.Add(fee)
}

// CreateOrder reserves an ACTIVE listing for the buyer and opens an order with
// payment PENDING and escrow HELD.
func (s *Service) CreateOrder(ctx context.Context, req *CreateRequest) (*domain.Order, error) {
	var o *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.listings.Get(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if l.SellerID == req.BuyerID {
			return pkgerrors.Validation("buyer cannot purchase their own listing")
		}
		if l.Status != domain.ListingStatusActive {
			return pkgerrors.State("listing %s is %s and not available", l.ID, l.Status)
		}

		// Reserve re-reads the listing under lock; a concurrent buyer loses here.
		l, err = s.listings.Reserve(ctx, req.ListingID)
		if err != nil {
			return err
		}

		fee, total := s.Fee(l.AskedPrice)
		now := time.Now().UTC()
		o = &domain.Order{
			ID:               uuid.New(),
			BuyerID:          req.BuyerID,
			ListingID:        l.ID,
			TotalAmount:      total,
			PlatformFee:      fee,
			PaymentStatus:    domain.PaymentStatusPending,
			EscrowStatus:     domain.EscrowStatusHeld,
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: s.generateReference(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return pkgerrors.Wrap(err, "failed to create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created", map[string]interface{}{
		"order_id":   o.ID,
		"buyer_id":   o.BuyerID,
		"listing_id": o.ListingID,
		"total":      o.TotalAmount.String(),
		"reference":  o.PaymentReference,
	})
	return o, nil
}

// CompletePayment records the external payment and marks the listing SOLD.
// Escrow stays HELD until ReleaseEscrow.
func (s *Service) CompletePayment(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "payment completed", func(ctx context.Context, o *domain.Order) error {
		if o.PaymentStatus != domain.PaymentStatusPending {
			return pkgerrors.State("order %s payment is %s, expected %s", o.ID, o.PaymentStatus, domain.PaymentStatusPending)
		}
		if _, err := s.listings.MarkSold(ctx, o.ListingID); err != nil {
			return err
		}
		now := time.Now().UTC()
		o.PaymentStatus = domain.PaymentStatusPaid
		o.CompletedAt = &now
		return nil
	})
}

// ReleaseEscrow pays out a PAID order to the seller and credits their reputation.
func (s *Service) ReleaseEscrow(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "escrow released", func(ctx context.Context, o *domain.Order) error {
		if o.PaymentStatus != domain.PaymentStatusPaid || o.EscrowStatus != domain.EscrowStatusHeld {
			return pkgerrors.State("order %s cannot be released: payment %s, escrow %s", o.ID, o.PaymentStatus, o.EscrowStatus)
		}
		return s.release(ctx, o)
	})
}

// MarkDispute freezes a HELD escrow. Already disputed, released or refunded
// orders fail with a state error.
func (s *Service) MarkDispute(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "escrow disputed", func(ctx context.Context, o *domain.Order) error {
		if o.EscrowStatus != domain.EscrowStatusHeld || o.PaymentStatus == domain.PaymentStatusRefunded {
			return pkgerrors.State("order %s cannot be disputed: payment %s, escrow %s", o.ID, o.PaymentStatus, o.EscrowStatus)
		}
		o.EscrowStatus = domain.EscrowStatusDispute
		return nil
	})
}

// CancelOrder lets the buyer or seller abandon an unpaid order, releasing the listing.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order cancelled", func(ctx context.Context, o *domain.Order) error {
		l, err := s.listings.Get(ctx, o.ListingID)
		if err != nil {
			return err
		}
		if actorID != o.BuyerID && actorID != l.SellerID {
			return pkgerrors.Permission("only the buyer or seller can cancel this order")
		}
		switch o.PaymentStatus {
		case domain.PaymentStatusPaid:
			return pkgerrors.State("paid orders cannot be cancelled, open a dispute instead")
		case domain.PaymentStatusRefunded:
			return pkgerrors.State("order %s is already refunded", o.ID)
		}
		o.PaymentStatus = domain.PaymentStatusRefunded
		_, err = s.listings.ReleaseReservation(ctx, o.ListingID)
		return err
	})
}

// RefundOrder is the administrative refund. It always succeeds for an existing
// order, leaving escrow HELD as the refund-pending marker.
func (s *Service) RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order refunded", func(ctx context.Context, o *domain.Order) error {
		alreadyRefunded := o.PaymentStatus == domain.PaymentStatusRefunded
		if o.EscrowStatus == domain.EscrowStatusReleasedToSeller {
			s.logger.Warn("Refunding an order already released to the seller", map[string]interface{}{"order_id": o.ID})
		}
		o.PaymentStatus = domain.PaymentStatusRefunded
		o.EscrowStatus = domain.EscrowStatusHeld
		if alreadyRefunded {
			return nil
		}
		_, err := s.listings.ReleaseReservation(ctx, o.ListingID)
		return err
	})
}

// ResolveForSeller settles a dispute in the seller's favour: a DISPUTE escrow
// returns to HELD and a PAID order is then released. A state error means
// there was nothing to settle.
func (s *Service) ResolveForSeller(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "dispute settled for seller", func(ctx context.Context, o *domain.Order) error {
		lifted := false
		if o.EscrowStatus == domain.EscrowStatusDispute && o.PaymentStatus != domain.PaymentStatusRefunded {
			o.EscrowStatus = domain.EscrowStatusHeld
			lifted = true
		}
		if o.PaymentStatus == domain.PaymentStatusPaid && o.EscrowStatus == domain.EscrowStatusHeld {
			return s.release(ctx, o)
		}
		if lifted {
			return nil
		}
		return pkgerrors.State("order %s has nothing to release: payment %s, escrow %s", o.ID, o.PaymentStatus, o.EscrowStatus)
	})
}

func (s *Service) release(ctx context.Context, o *domain.Order) error {
	l, err := s.listings.Get(ctx, o.ListingID)
	if err != nil {
		return err
	}
	o.EscrowStatus = domain.EscrowStatusReleasedToSeller
	reason := fmt.Sprintf("escrow released for order %s", o.ID)
	if _, err := s.reputation.Adjust(ctx, l.SellerID, s.cfg.ReleaseReputationDelta, reason); err != nil {
		return pkgerrors.Wrap(err, "failed to credit seller reputation")
	}
	return nil
}

// mutate locks the order, applies fn and persists the result in one transaction.
func (s *Service) mutate(ctx context.Context, orderID uuid.UUID, event string, fn func(ctx context.Context, o *domain.Order) error) (*domain.Order, error) {
	var (
		out     *domain.Order
		from    domain.PaymentStatus
		fromEsc domain.EscrowStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from, fromEsc = o.PaymentStatus, o.EscrowStatus
		if err := fn(ctx, o); err != nil {
			return err
		}
		o.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, o); err != nil {
			return pkgerrors.Wrap(err, "failed to update order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order "+event, map[string]interface{}{
		"order_id":     out.ID,
		"payment_from": from,
		"payment_to":   out.PaymentStatus,
		"escrow_from":  fromEsc,
		"escrow_to":    out.EscrowStatus,
	})
	return out, nil
}

func (s *Service) generateReference() string {
	return fmt.Sprintf("PAY-%d-%s", time.Now().Unix(), strings.ToUpper(uuid.New().String()[:8]))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// Parties returns the buyer of an order and the seller of its listing.
func (s *Service) Parties(ctx context.Context, orderID uuid.UUID) (buyerID, sellerID uuid.UUID, err error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	l, err := s.listings.Get(ctx, o.ListingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return o.BuyerID, l.SellerID, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID, clampLimit(limit), max(offset, 0))
}

func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return s.repo.ListBySeller(ctx, sellerID, clampLimit(limit), max(offset, 0))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
