package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", pkgerrors.Validation("reason is required"), http.StatusBadRequest, `{"error":"reason is required"}`},
		{"permission", pkgerrors.Wrap(pkgerrors.Permission("not yours"), "update listing"), http.StatusForbidden, `{"error":"update listing: not yours"}`},
		{"not found", pkgerrors.ErrOrderNotFound, http.StatusNotFound, `{"error":"order not found"}`},
		{"state", pkgerrors.State("order is already paid"), http.StatusConflict, `{"error":"order is already paid"}`},
		{"unclassified", errors.New("pq: connection reset"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondServiceError(w, logger.NewNop(), httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
