package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"fairtix/internal/app"
	"fairtix/internal/middleware"
	"fairtix/pkg/logger"
	"fairtix/pkg/validator"
)

// RouterConfig collects what the HTTP surface is built from. RateLimit and
// Idempotency are optional; both need redis.
type RouterConfig struct {
	Services    *app.Services
	Validator   *validator.Validator
	Auth        *middleware.AuthMiddleware
	Revoker     TokenRevoker
	Checks      map[string]Check
	RateLimit   mux.MiddlewareFunc
	Idempotency mux.MiddlewareFunc
	Logger      logger.Logger
}

func NewRouter(cfg RouterConfig) *mux.Router {
	log := cfg.Logger
	svcs := cfg.Services
	val := cfg.Validator
	if val == nil {
		val = validator.New()
	}
	idem := cfg.Idempotency
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}

	system := NewSystemHandler(cfg.Checks, log)
	prices := NewReferencePriceHandler(svcs.Pricing, val, log)
	listings := NewListingHandler(svcs.Listings, val, log)
	orders := NewOrderHandler(svcs.Orders, svcs.Listings, val, log)
	disputes := NewDisputeHandler(svcs.Disputes, svcs.Reputation, val, log)
	chats := NewChatHandler(svcs.Chat, svcs.Listings, val, log)
	audits := NewAuditHandler(svcs.Audit, log)
	users := NewUsersHandler(svcs.Auth, cfg.Revoker, val, log)

	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)

	r.HandleFunc("/health", system.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", system.Ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(cfg.Auth.Authenticate)
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit)
	}

	api.HandleFunc("/me", users.Me).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", users.Logout).Methods(http.MethodPost)

	api.Handle("/reference-prices", cfg.Auth.RequireAdmin(http.HandlerFunc(prices.Create))).Methods(http.MethodPost)
	api.HandleFunc("/reference-prices/{id}", prices.Get).Methods(http.MethodGet)

	api.HandleFunc("/listings", listings.Create).Methods(http.MethodPost)
	api.HandleFunc("/listings", listings.List).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", listings.Get).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", listings.Update).Methods(http.MethodPatch)
	api.HandleFunc("/listings/{id}/cancel", listings.Cancel).Methods(http.MethodPost)

	api.Handle("/orders", idem(http.HandlerFunc(orders.Create))).Methods(http.MethodPost)
	api.HandleFunc("/orders", orders.List).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", orders.Get).Methods(http.MethodGet)
	api.Handle("/orders/{id}/pay", idem(http.HandlerFunc(orders.Pay))).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/release", orders.Release).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/cancel", orders.Cancel).Methods(http.MethodPost)

	api.HandleFunc("/disputes", disputes.Create).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/reputation", disputes.Reputation).Methods(http.MethodGet)

	api.HandleFunc("/chat/rooms", chats.OpenRoom).Methods(http.MethodPost)
	api.HandleFunc("/chat/rooms", chats.ListRooms).Methods(http.MethodGet)
	api.HandleFunc("/chat/rooms/{id}", chats.GetRoom).Methods(http.MethodGet)
	api.HandleFunc("/chat/rooms/{id}/messages", chats.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chat/rooms/{id}/messages", chats.ListMessages).Methods(http.MethodGet)
	api.HandleFunc("/chat/rooms/{id}/read", chats.MarkRead).Methods(http.MethodPost)
	api.HandleFunc("/chat/rooms/{id}/archive", chats.Archive).Methods(http.MethodPost)
	api.HandleFunc("/chat/unread", chats.Unread).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(cfg.Auth.RequireAdmin)
	admin.Use(middleware.NewAuditMiddleware(svcs.Audit, log).Audit)

	admin.HandleFunc("/users", users.Register).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/token", users.IssueToken).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/reputation-impact", disputes.ReputationImpact).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/refund", orders.Refund).Methods(http.MethodPost)
	admin.HandleFunc("/disputes", disputes.List).Methods(http.MethodGet)
	admin.HandleFunc("/disputes/{id}", disputes.Get).Methods(http.MethodGet)
	admin.HandleFunc("/disputes/{id}/resolve", disputes.Resolve).Methods(http.MethodPost)
	admin.HandleFunc("/chat/rooms/{id}/block", chats.Block).Methods(http.MethodPost)
	admin.HandleFunc("/chat/messages/flagged", chats.Flagged).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs", audits.List).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/suspicious", audits.Suspicious).Methods(http.MethodGet)

	return r
}
