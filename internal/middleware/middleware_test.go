package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
	"fairtix/pkg/logger"
)

const secret = "middleware-secret"

func signToken(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

type fakeBlacklist struct {
	revoked map[string]bool
}

func (f *fakeBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	f.revoked[token] = true
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return f.revoked[token], nil
}

func TestAuthenticate(t *testing.T) {
	blacklist := &fakeBlacklist{revoked: map[string]bool{}}
	m := NewAuthMiddleware(secret, blacklist, logger.NewNop())
	userID := uuid.New()

	var seen uuid.UUID
	var admin bool
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		admin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid := signToken(t, jwt.MapClaims{
		"user_id":   userID.String(),
		"user_type": "admin",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}, secret)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID.String()}, "other"), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(-time.Minute).Unix()}, secret), http.StatusUnauthorized},
		{"bad user id", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "nope"}, secret), http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, userID, seen)
	assert.True(t, admin)

	blacklist.revoked[valid] = true
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(secret, nil, logger.NewNop())
	handler := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), uuid.New(), domain.UserTypeIndividual))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = req.WithContext(WithIdentity(req.Context(), uuid.New(), domain.UserTypeAdmin))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestCorrelationID(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	for _, bad := range []string{"id\nforged=1", "spaced id", strings.Repeat("a", 65)} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.NotEqual(t, bad, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	}
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, req audit.RecordRequest) (*domain.AuditLogEntry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditLogEntry), args.Error(1)
}

func TestAuditMiddleware_RecordsAdminRequest(t *testing.T) {
	recorder := new(MockAuditRecorder)
	m := NewAuditMiddleware(recorder, logger.NewNop())
	m.async = false
	admin := uuid.New()

	recorder.On("Record", mock.Anything, mock.MatchedBy(func(r audit.RecordRequest) bool {
		return r.Action == audit.ActionAdminRequest &&
			r.ActorID != nil && *r.ActorID == admin &&
			r.Metadata["path"] == "/api/v1/admin/disputes" &&
			r.Metadata["status"] == http.StatusTeapot
	})).Return(&domain.AuditLogEntry{}, nil)

	handler := m.Audit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/disputes", nil)
	req = req.WithContext(WithIdentity(req.Context(), admin, domain.UserTypeAdmin))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	recorder.AssertExpectations(t)
}
