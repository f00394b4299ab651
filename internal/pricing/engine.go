// Package pricing enforces the resale markup ceiling against reference face values.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type ReferencePriceRepository interface {
	Create(ctx context.Context, rp *domain.ReferencePrice) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ReferencePrice, error)
}

// Cache is an optional read-through cache for reference prices.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Engine struct {
	repo     ReferencePriceRepository
	cache    Cache
	cacheTTL time.Duration
	ceiling  decimal.Decimal
	logger   logger.Logger
}

func NewEngine(repo ReferencePriceRepository, ceiling decimal.Decimal, log logger.Logger) *Engine {
	return &Engine{
		repo:    repo,
		ceiling: ceiling,
		logger:  log,
	}
}

// WithCache enables read-through caching of reference prices.
func (e *Engine) WithCache(c Cache, ttl time.Duration) *Engine {
	e.cache = c
	e.cacheTTL = ttl
	return e
}

func (e *Engine) Ceiling() decimal.Decimal {
	return e.ceiling
}

// MaxAllowed is faceValue × ceiling, unrounded.
func MaxAllowed(faceValue, ceiling decimal.Decimal) decimal.Decimal {
	return faceValue.Mul(ceiling)
}

// Validate reports whether asked is within the ceiling for ref. A missing
// reference price never validates. The boundary is inclusive.
func Validate(asked decimal.Decimal, ref *domain.ReferencePrice, ceiling decimal.Decimal) bool {
	if ref == nil || !ref.FaceValue.IsPositive() {
		return false
	}
	return asked.LessThanOrEqual(MaxAllowed(ref.FaceValue, ceiling))
}

// Validate resolves the reference price and applies the ceiling. Any lookup
// failure yields false.
func (e *Engine) Validate(ctx context.Context, referencePriceID uuid.UUID, asked decimal.Decimal) bool {
	ref, err := e.GetReferencePrice(ctx, referencePriceID)
	if err != nil {
		e.logger.Warn("Price validation failed closed", map[string]interface{}{
			"reference_price_id": referencePriceID,
			"error":              err,
		})
		return false
	}
	return Validate(asked, ref, e.ceiling)
}

// Check is the error-returning form of Validate used by listing mutations. It
// returns NotFound when the reference price is unknown and *PriceLimitError on
// a ceiling violation.
func (e *Engine) Check(ctx context.Context, referencePriceID uuid.UUID, asked decimal.Decimal) (*domain.ReferencePrice, error) {
	if !asked.IsPositive() {
		return nil, pkgerrors.Validation("asked price must be positive")
	}
	ref, err := e.GetReferencePrice(ctx, referencePriceID)
	if err != nil {
		return nil, err
	}
	if !Validate(asked, ref, e.ceiling) {
		return ref, &pkgerrors.PriceLimitError{
			FaceValue:  ref.FaceValue,
			Ceiling:    e.ceiling,
			MaxAllowed: MaxAllowed(ref.FaceValue, e.ceiling),
			Asked:      asked,
		}
	}
	return ref, nil
}

// Quote is a reference price together with its computed maximum resale price.
type Quote struct {
	ReferencePrice *domain.ReferencePrice `json:"reference_price"`
	Ceiling        decimal.Decimal        `json:"ceiling"`
	MaxAllowed     decimal.Decimal        `json:"max_allowed"`
}

func (e *Engine) Quote(ctx context.Context, referencePriceID uuid.UUID) (*Quote, error) {
	ref, err := e.GetReferencePrice(ctx, referencePriceID)
	if err != nil {
		return nil, err
	}
	return &Quote{
		ReferencePrice: ref,
		Ceiling:        e.ceiling,
		MaxAllowed:     MaxAllowed(ref.FaceValue, e.ceiling),
	}, nil
}

type CreateReferencePriceRequest struct {
	CatalogItemID uuid.UUID       `json:"catalog_item_id" validate:"required"`
	Category      string          `json:"category" validate:"required,max=100"`
	FaceValue     decimal.Decimal `json:"face_value" validate:"required,gt=0"`
}

func (e *Engine) CreateReferencePrice(ctx context.Context, req *CreateReferencePriceRequest) (*domain.ReferencePrice, error) {
	if !req.FaceValue.IsPositive() {
		return nil, pkgerrors.Validation("face value must be positive")
	}
	if req.Category == "" {
		return nil, pkgerrors.Validation("category is required")
	}

	rp := &domain.ReferencePrice{
		ID:            uuid.New(),
		CatalogItemID: req.CatalogItemID,
		Category:      req.Category,
		FaceValue:     req.FaceValue,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.repo.Create(ctx, rp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create reference price")
	}

	e.logger.Info("Reference price created", map[string]interface{}{
		"reference_price_id": rp.ID,
		"catalog_item_id":    rp.CatalogItemID,
		"face_value":         rp.FaceValue.String(),
	})
	return rp, nil
}

func (e *Engine) GetReferencePrice(ctx context.Context, id uuid.UUID) (*domain.ReferencePrice, error) {
	key := cacheKey(id)
	if e.cache != nil {
		var cached domain.ReferencePrice
		err := e.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		e.logger.Debug("Reference price cache miss", map[string]interface{}{"key": key, "error": err})
	}

	rp, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return nil, pkgerrors.ErrReferencePriceNotFound
	}

	if e.cache != nil {
		// reference prices are immutable so a stale entry cannot exist
		if err := e.cache.Set(ctx, key, rp, e.cacheTTL); err != nil {
			e.logger.Warn("Failed to cache reference price", map[string]interface{}{"key": key, "error": err})
		}
	}
	return rp, nil
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("refprice:%s", id)
}

// IsPriceLimit reports whether err carries a ceiling violation.
func IsPriceLimit(err error) (*pkgerrors.PriceLimitError, bool) {
	var pe *pkgerrors.PriceLimitError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
