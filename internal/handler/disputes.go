package handler

import (
	"net/http"
	"strings"

	"fairtix/internal/dispute"
	"fairtix/internal/domain"
	"fairtix/internal/reputation"
	"fairtix/pkg/validator"
)

type DisputeHandler struct {
	disputes   *dispute.Service
	reputation *reputation.Service
	validator  *validator.Validator
	logger     Logger
}

func NewDisputeHandler(disputes *dispute.Service, rep *reputation.Service, val *validator.Validator, log Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, reputation: rep, validator: val, logger: log}
}

func (h *DisputeHandler) Create(w http.ResponseWriter, r *http.Request) {
	reporterID, ok := caller(w, r)
	if !ok {
		return
	}
	var req dispute.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ReporterID = reporterID
	req.IPAddress = clientIP(r)
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	d, err := h.disputes.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// List is the admin queue. Filters: ?status, ?reporter_id, ?reported_user_id.
func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.DisputeFilter
	var ok bool
	if filter.ReporterID, ok = queryUUID(w, r, "reporter_id"); !ok {
		return
	}
	if filter.ReportedUserID, ok = queryUUID(w, r, "reported_user_id"); !ok {
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.DisputeStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	limit, offset := pagination(r)
	disputes, err := h.disputes.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"disputes": disputes,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.disputes.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dispute.ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisputeID = id
	req.AdminID = &adminID
	req.IPAddress = clientIP(r)
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	d, err := h.disputes.Resolve(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// ReputationImpact summarises disputes against a user. Admin only.
func (h *DisputeHandler) ReputationImpact(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	impact, err := h.disputes.ReputationImpact(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, impact)
}

// Reputation returns a user's public score with recent adjustments.
func (h *DisputeHandler) Reputation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, _ := pagination(r)
	summary, err := h.reputation.Summary(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
