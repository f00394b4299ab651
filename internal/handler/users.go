package handler

import (
	"context"
	"net/http"
	"time"

	"fairtix/internal/auth"
	"fairtix/internal/middleware"
	"fairtix/pkg/validator"
)

// TokenRevoker invalidates a bearer token until it would have expired anyway.
type TokenRevoker interface {
	Blacklist(ctx context.Context, token string, expiration time.Duration) error
}

type UsersHandler struct {
	service   *auth.Service
	revoker   TokenRevoker
	validator *validator.Validator
	logger    Logger
}

func NewUsersHandler(service *auth.Service, revoker TokenRevoker, val *validator.Validator, log Logger) *UsersHandler {
	return &UsersHandler{service: service, revoker: revoker, validator: val, logger: log}
}

// Register provisions a user known to the identity provider. Admin only.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// IssueToken mints an access token for a registered user. Admin only.
func (h *UsersHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.service.IssueToken(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Logout revokes the bearer token used for this request.
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, exp, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if h.revoker == nil {
		respondError(w, http.StatusServiceUnavailable, "Token revocation unavailable")
		return
	}

	ttl := time.Until(exp)
	if exp.IsZero() {
		ttl = 24 * time.Hour
	}
	if err := h.revoker.Blacklist(r.Context(), token, ttl); err != nil {
		h.logger.Error("Failed to revoke token", map[string]interface{}{"error": err})
		respondError(w, http.StatusServiceUnavailable, "Token revocation unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
