package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"fairtix/internal/domain"
	"fairtix/internal/listing"
	"fairtix/internal/middleware"
	"fairtix/internal/order"
	"fairtix/pkg/validator"
)

type OrderHandler struct {
	orders    *order.Service
	listings  *listing.Service
	validator *validator.Validator
	logger    Logger
}

func NewOrderHandler(orders *order.Service, listings *listing.Service, val *validator.Validator, log Logger) *OrderHandler {
	return &OrderHandler{orders: orders, listings: listings, validator: val, logger: log}
}

// Create reserves the listing for the caller and opens a PENDING order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := caller(w, r)
	if !ok {
		return
	}
	var req order.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.BuyerID = buyerID
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// Get is visible to the buyer, the listing's seller and admins.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	if o.BuyerID != userID && !middleware.IsAdmin(r.Context()) {
		l, err := h.listings.Get(r.Context(), o.ListingID)
		if err != nil {
			respondServiceError(w, h.logger, r, err)
			return
		}
		if l.SellerID != userID {
			respondError(w, http.StatusForbidden, "Not a party to this order")
			return
		}
	}
	respondJSON(w, http.StatusOK, o)
}

// List returns the caller's orders; ?role=seller lists sales instead of purchases.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	var (
		orders []*domain.Order
		err    error
	)
	role := r.URL.Query().Get("role")
	switch role {
	case "", "buyer":
		role = "buyer"
		orders, err = h.orders.ListForBuyer(r.Context(), userID, limit, offset)
	case "seller":
		orders, err = h.orders.ListForSeller(r.Context(), userID, limit, offset)
	default:
		respondError(w, http.StatusBadRequest, "role must be buyer or seller")
		return
	}
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"role":   role,
		"limit":  limit,
		"offset": offset,
	})
}

// Pay records the confirmation from the payment provider.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.buyerAction(w, r, h.orders.CompletePayment)
}

// Release hands the escrowed funds to the seller once the buyer confirms delivery.
func (h *OrderHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.buyerAction(w, r, h.orders.ReleaseEscrow)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.orders.CancelOrder(r.Context(), id, userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Refund is the administrative refund. Admin only.
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.orders.RefundOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) buyerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id uuid.UUID) (*domain.Order, error)) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	if o.BuyerID != userID && !middleware.IsAdmin(r.Context()) {
		respondError(w, http.StatusForbidden, "Only the buyer can perform this action")
		return
	}

	updated, err := action(r.Context(), o.ID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return nil, false
	}
	return o, true
}
