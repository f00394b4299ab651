package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairtix/internal/app"
	"fairtix/internal/auth"
	"fairtix/internal/domain"
	"fairtix/internal/middleware"
	"fairtix/internal/repository/memory"
	"fairtix/pkg/config"
	"fairtix/pkg/logger"
)

const testSecret = "handler-test-secret"

type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (b *memoryBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = expiration
	return nil
}

func (b *memoryBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[token]
	return ok, nil
}

type testServer struct {
	t      *testing.T
	router http.Handler
	svcs   *app.Services

	admin, seller, buyer string
	sellerID, buyerID    uuid.UUID
}

func newTestServer(t *testing.T, checks map[string]Check) *testServer {
	t.Helper()
	log := logger.NewNop()
	svcs := app.NewServices(app.MemoryRepositories(memory.New()), app.Options{
		Marketplace: config.DefaultMarketplace(),
		JWTSecret:   testSecret,
		JWTExpiry:   time.Hour,
	}, log)
	blacklist := &memoryBlacklist{revoked: map[string]time.Duration{}}

	s := &testServer{
		t:    t,
		svcs: svcs,
		router: NewRouter(RouterConfig{
			Services: svcs,
			Auth:     middleware.NewAuthMiddleware(testSecret, blacklist, log),
			Revoker:  blacklist,
			Checks:   checks,
			Logger:   log,
		}),
	}

	var adminID uuid.UUID
	s.admin, adminID = s.register("admin@fairtix.test", domain.UserTypeAdmin)
	s.seller, s.sellerID = s.register("seller@fairtix.test", domain.UserTypeIndividual)
	s.buyer, s.buyerID = s.register("buyer@fairtix.test", domain.UserTypeIndividual)
	require.NotEqual(t, uuid.Nil, adminID)
	return s
}

func (s *testServer) register(email string, kind domain.UserType) (string, uuid.UUID) {
	ctx := context.Background()
	user, err := s.svcs.Auth.Register(ctx, &auth.RegisterRequest{Email: email, Name: email, UserType: kind})
	require.NoError(s.t, err)
	tok, err := s.svcs.Auth.IssueToken(ctx, user.ID)
	require.NoError(s.t, err)
	return tok.AccessToken, user.ID
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// activeListing creates a reference price with the given face value and a listing at asked.
func (s *testServer) activeListing(face, asked string) *domain.Listing {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/reference-prices", s.admin, map[string]interface{}{
		"catalog_item_id": uuid.New(),
		"category":        "pista",
		"face_value":      face,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	rp := decodeBody[domain.ReferencePrice](s.t, w)

	w = s.do(http.MethodPost, "/api/v1/listings", s.seller, map[string]interface{}{
		"reference_price_id": rp.ID,
		"asked_price":        asked,
		"description":        "Pista premium, setor B",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[*domain.Listing](s.t, w)
}

func (s *testServer) paidOrder() *domain.Order {
	s.t.Helper()
	l := s.activeListing("300", "300")
	w := s.do(http.MethodPost, "/api/v1/orders", s.buyer, map[string]interface{}{"listing_id": l.ID})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	o := decodeBody[*domain.Order](s.t, w)

	w = s.do(http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/pay", s.buyer, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[*domain.Order](s.t, w)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, map[string]Check{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, "not_ready", body["status"])
}

func TestRouter_AccessControl(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/listings", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/listings", s.buyer, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/disputes", s.buyer, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/reference-prices", s.seller, map[string]interface{}{
		"catalog_item_id": uuid.New(), "category": "pista", "face_value": "100",
	}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/disputes", s.admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/listings/not-a-uuid", s.buyer, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/listings/"+uuid.NewString(), s.buyer, nil).Code)
}

func TestRouter_ListingAbovePriceLimit(t *testing.T) {
	s := newTestServer(t, nil)
	l := s.activeListing("300", "360")
	assert.Equal(t, domain.ListingStatusActive, l.Status)

	w := s.do(http.MethodPost, "/api/v1/listings", s.seller, map[string]interface{}{
		"reference_price_id": l.ReferencePriceID,
		"asked_price":        "360.01",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, "300.00", body["face_value"])
	assert.Equal(t, "360.00", body["max_allowed"])

	w = s.do(http.MethodGet, "/api/v1/reference-prices/"+l.ReferencePriceID.String(), s.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, "360", quote["max_allowed"])

	w = s.do(http.MethodPatch, "/api/v1/listings/"+l.ID.String(), s.buyer, map[string]interface{}{"description": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_PurchaseAndRelease(t *testing.T) {
	s := newTestServer(t, nil)
	l := s.activeListing("300", "100")

	w := s.do(http.MethodPost, "/api/v1/orders", s.buyer, map[string]interface{}{"listing_id": l.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decodeBody[*domain.Order](t, w)
	assert.True(t, decimal.RequireFromString("105").Equal(o.TotalAmount))
	assert.True(t, decimal.RequireFromString("5").Equal(o.PlatformFee))

	w = s.do(http.MethodPost, "/api/v1/orders", s.buyer, map[string]interface{}{"listing_id": l.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	path := "/api/v1/orders/" + o.ID.String()
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, s.seller, nil).Code)
	outsider, _ := s.register("outsider@fairtix.test", domain.UserTypeIndividual)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, outsider, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, path+"/pay", s.seller, nil).Code)

	w = s.do(http.MethodPost, path+"/pay", s.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.PaymentStatusPaid, decodeBody[*domain.Order](t, w).PaymentStatus)

	w = s.do(http.MethodPost, path+"/release", s.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.EscrowStatusReleasedToSeller, decodeBody[*domain.Order](t, w).EscrowStatus)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, path+"/release", s.buyer, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/orders?role=seller", s.seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sales := decodeBody[struct {
		Orders []*domain.Order `json:"orders"`
	}](t, w)
	require.Len(t, sales.Orders, 1)
	assert.Equal(t, o.ID, sales.Orders[0].ID)

	w = s.do(http.MethodGet, "/api/v1/users/"+s.sellerID.String()+"/reputation", s.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rep := decodeBody[struct {
		Score decimal.Decimal `json:"score"`
	}](t, w)
	assert.True(t, decimal.NewFromInt(1).Equal(rep.Score))
}

func TestRouter_CancelPaidOrderConflicts(t *testing.T) {
	s := newTestServer(t, nil)
	o := s.paidOrder()

	w := s.do(http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/cancel", s.buyer, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/orders/"+o.ID.String()+"/refund", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PaymentStatusRefunded, decodeBody[*domain.Order](t, w).PaymentStatus)
}

func TestRouter_DisputeResolution(t *testing.T) {
	s := newTestServer(t, nil)
	o := s.paidOrder()

	w := s.do(http.MethodPost, "/api/v1/disputes", s.buyer, map[string]interface{}{
		"reported_user_id": s.sellerID,
		"order_id":         o.ID,
		"reason":           "Ingresso não chegou",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decodeBody[*domain.Dispute](t, w)

	stranger, _ := s.register("stranger@fairtix.test", domain.UserTypeIndividual)
	w = s.do(http.MethodPost, "/api/v1/disputes", stranger, map[string]interface{}{
		"reported_user_id": s.sellerID,
		"order_id":         o.ID,
		"reason":           "not my order",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/disputes", s.buyer, map[string]interface{}{
		"reported_user_id": s.buyerID,
		"reason":           "self",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/orders/"+o.ID.String(), s.buyer, nil)
	assert.Equal(t, domain.EscrowStatusDispute, decodeBody[*domain.Order](t, w).EscrowStatus)

	resolve := "/api/v1/admin/disputes/" + d.ID.String() + "/resolve"
	w = s.do(http.MethodPost, resolve, s.admin, map[string]interface{}{
		"admin_notes":  "Reclamação procedente, vendedor não entregou",
		"refund_buyer": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeBody[*domain.Dispute](t, w).Upheld)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, resolve, s.admin, map[string]interface{}{}).Code)

	w = s.do(http.MethodGet, "/api/v1/admin/users/"+s.sellerID.String()+"/reputation-impact", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	impact := decodeBody[map[string]interface{}](t, w)
	assert.EqualValues(t, 1, impact["total_disputes"])
	assert.EqualValues(t, 1, impact["resolved_against"])

	w = s.do(http.MethodGet, "/api/v1/admin/disputes?status=resolved", s.admin, nil)
	list := decodeBody[struct {
		Disputes []*domain.Dispute `json:"disputes"`
	}](t, w)
	require.Len(t, list.Disputes, 1)
	assert.Equal(t, d.ID, list.Disputes[0].ID)
}

func TestRouter_ChatModeration(t *testing.T) {
	s := newTestServer(t, nil)
	l := s.activeListing("200", "200")

	w := s.do(http.MethodPost, "/api/v1/chat/rooms", s.buyer, map[string]interface{}{"listing_id": l.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	room := decodeBody[*domain.ChatRoom](t, w)
	again := decodeBody[*domain.ChatRoom](t, s.do(http.MethodPost, "/api/v1/chat/rooms", s.buyer, map[string]interface{}{"listing_id": l.ID}))
	assert.Equal(t, room.ID, again.ID)

	messages := "/api/v1/chat/rooms/" + room.ID.String() + "/messages"
	w = s.do(http.MethodPost, messages, s.buyer, map[string]interface{}{"text": "me chama no zap 11 98765-4321"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decodeBody[*domain.ChatMessage](t, w).IsFlagged)

	outsider, _ := s.register("curious@fairtix.test", domain.UserTypeIndividual)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, messages, outsider, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/chat/unread", s.seller, nil)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/chat/rooms/"+room.ID.String()+"/read", s.seller, nil)
	assert.JSONEq(t, `{"marked_read":1}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/admin/chat/messages/flagged", s.admin, nil)
	flagged := decodeBody[struct {
		Messages []*domain.ChatMessage `json:"messages"`
	}](t, w)
	assert.Len(t, flagged.Messages, 1)

	w = s.do(http.MethodGet, "/api/v1/admin/audit-logs/suspicious", s.admin, nil)
	suspicious := decodeBody[struct {
		Logs []*domain.AuditLogEntry `json:"logs"`
	}](t, w)
	assert.Len(t, suspicious.Logs, 1)

	w = s.do(http.MethodPost, "/api/v1/admin/chat/rooms/"+room.ID.String()+"/block", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, messages, s.seller, map[string]interface{}{"text": "olá"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_UserProvisioningAndLogout(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/admin/users", s.admin, map[string]interface{}{
		"email": "New.User@Fairtix.test",
		"name":  "New User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decodeBody[*domain.User](t, w)
	assert.Equal(t, "new.user@fairtix.test", user.Email)

	w = s.do(http.MethodPost, "/api/v1/admin/users", s.admin, map[string]interface{}{
		"email": "new.user@fairtix.test",
		"name":  "Impostor",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/users/"+user.ID.String()+"/token", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeBody[auth.TokenResponse](t, w).AccessToken

	w = s.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, decodeBody[*domain.User](t, w).ID)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/me", token, nil).Code)
}
