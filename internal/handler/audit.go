package handler

import (
	"net/http"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
)

type AuditHandler struct {
	service *audit.Service
	logger  Logger
}

func NewAuditHandler(service *audit.Service, log Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: log}
}

// List returns audit entries, newest first. Filters: ?actor_id, ?action (prefix).
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.AuditFilter
	var ok bool
	if filter.ActorID, ok = queryUUID(w, r, "actor_id"); !ok {
		return
	}
	filter.ActionPrefix = r.URL.Query().Get("action")

	limit, offset := pagination(r)
	logs, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// Suspicious lists the chat moderation findings.
func (h *AuditHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)
	logs, err := h.service.Suspicious(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
