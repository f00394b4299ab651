package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fairtix/internal/middleware"
	pkgerrors "fairtix/pkg/errors"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
}

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errors map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": errors,
	})
}

// respondServiceError maps a classified service error onto a status code.
// Unclassified errors are logged and hidden behind a generic 500.
func respondServiceError(w http.ResponseWriter, log Logger, r *http.Request, err error) {
	var limit *pkgerrors.PriceLimitError
	if errors.As(err, &limit) {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":       limit.Error(),
			"face_value":  limit.FaceValue.StringFixed(2),
			"max_allowed": limit.MaxAllowed.StringFixed(2),
			"asked_price": limit.Asked.StringFixed(2),
		})
		return
	}

	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindValidation:
		respondError(w, http.StatusBadRequest, err.Error())
	case pkgerrors.KindPermission:
		respondError(w, http.StatusForbidden, err.Error())
	case pkgerrors.KindNotFound:
		respondError(w, http.StatusNotFound, err.Error())
	case pkgerrors.KindState:
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error("Request failed", map[string]interface{}{
			"error":      err,
			"path":       r.URL.Path,
			"request_id": middleware.RequestIDFromContext(r.Context()),
		})
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return nil, false
	}
	return &id, true
}

func caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func clientIP(r *http.Request) *string {
	ip := middleware.ClientIP(r)
	return &ip
}
