package handler

import (
	"net/http"

	"fairtix/internal/pricing"
	"fairtix/pkg/validator"
)

type ReferencePriceHandler struct {
	engine    *pricing.Engine
	validator *validator.Validator
	logger    Logger
}

func NewReferencePriceHandler(engine *pricing.Engine, val *validator.Validator, log Logger) *ReferencePriceHandler {
	return &ReferencePriceHandler{engine: engine, validator: val, logger: log}
}

// Create registers the face value of a catalog item. Admin only.
func (h *ReferencePriceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req pricing.CreateReferencePriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	rp, err := h.engine.CreateReferencePrice(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rp)
}

// Get returns the reference price with the maximum resale price it allows.
func (h *ReferencePriceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	quote, err := h.engine.Quote(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}
