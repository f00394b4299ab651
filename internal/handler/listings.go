package handler

import (
	"net/http"
	"strings"

	"fairtix/internal/domain"
	"fairtix/internal/listing"
	"fairtix/pkg/validator"
)

type ListingHandler struct {
	service   *listing.Service
	validator *validator.Validator
	logger    Logger
}

func NewListingHandler(service *listing.Service, val *validator.Validator, log Logger) *ListingHandler {
	return &ListingHandler{service: service, validator: val, logger: log}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := caller(w, r)
	if !ok {
		return
	}
	var req listing.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SellerID = sellerID
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	l, err := h.service.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

// List supports ?seller_id, ?status and ?reference_price_id filters.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.ListingFilter
	var ok bool
	if filter.SellerID, ok = queryUUID(w, r, "seller_id"); !ok {
		return
	}
	if filter.ReferencePriceID, ok = queryUUID(w, r, "reference_price_id"); !ok {
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ListingStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	limit, offset := pagination(r)
	listings, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req listing.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	l, err := h.service.Update(r.Context(), id, sellerID, &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.service.Cancel(r.Context(), id, sellerID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}
