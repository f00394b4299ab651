// Package app assembles the marketplace services over a chosen store.
package app

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"fairtix/internal/audit"
	"fairtix/internal/auth"
	"fairtix/internal/chat"
	"fairtix/internal/dispute"
	"fairtix/internal/listing"
	"fairtix/internal/moderation"
	"fairtix/internal/order"
	"fairtix/internal/pricing"
	"fairtix/internal/repository/memory"
	"fairtix/internal/repository/postgres"
	"fairtix/internal/reputation"
	"fairtix/pkg/config"
	"fairtix/pkg/logger"
)

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories is one store's implementation of every table.
type Repositories struct {
	Tx              TxManager
	Users           auth.Repository
	ReferencePrices pricing.ReferencePriceRepository
	Listings        listing.Repository
	Orders          order.Repository
	Disputes        dispute.Repository
	Chat            chat.Repository
	Audit           audit.Repository
	Reputation      reputation.Repository
}

func MemoryRepositories(s *memory.Store) Repositories {
	return Repositories{
		Tx:              s,
		Users:           s.Users(),
		ReferencePrices: s.ReferencePrices(),
		Listings:        s.Listings(),
		Orders:          s.Orders(),
		Disputes:        s.Disputes(),
		Chat:            s.Chat(),
		Audit:           s.Audit(),
		Reputation:      s.Reputation(),
	}
}

func PostgresRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Tx:              postgres.NewTxManager(db),
		Users:           postgres.NewUserRepository(db),
		ReferencePrices: postgres.NewReferencePriceRepository(db),
		Listings:        postgres.NewListingRepository(db),
		Orders:          postgres.NewOrderRepository(db),
		Disputes:        postgres.NewDisputeRepository(db),
		Chat:            postgres.NewChatRepository(db),
		Audit:           postgres.NewAuditRepository(db),
		Reputation:      postgres.NewReputationRepository(db),
	}
}

type Services struct {
	Auth       *auth.Service
	Pricing    *pricing.Engine
	Listings   *listing.Service
	Orders     *order.Service
	Disputes   *dispute.Service
	Chat       *chat.Service
	Audit      *audit.Service
	Reputation *reputation.Service
	Moderation *moderation.Filter
}

// Options are the settings the services are built with.
type Options struct {
	Marketplace config.MarketplaceConfig
	JWTSecret   string
	JWTExpiry   time.Duration
	// PriceCache is optional.
	PriceCache    pricing.Cache
	PriceCacheTTL time.Duration
}

func NewServices(repos Repositories, opts Options, log logger.Logger) *Services {
	m := opts.Marketplace

	engine := pricing.NewEngine(repos.ReferencePrices, m.MarkupCeiling, log)
	if opts.PriceCache != nil {
		engine.WithCache(opts.PriceCache, opts.PriceCacheTTL)
	}

	auditSvc := audit.NewService(repos.Audit, log)
	reputationSvc := reputation.NewService(repos.Reputation, log)
	listingSvc := listing.NewService(repos.Listings, engine, repos.Tx, log)
	orderSvc := order.NewService(repos.Orders, listingSvc, reputationSvc, repos.Tx, order.Config{
		PlatformFeeRate:        m.PlatformFeeRate,
		ReleaseReputationDelta: m.SellerReleaseDelta,
	}, log)
	disputeSvc := dispute.NewService(repos.Disputes, orderSvc, repos.Users, auditSvc, reputationSvc, repos.Tx, dispute.Config{
		AdverseMarkers: m.DisputeAdverseMarkers,
		Penalty:        m.DisputePenalty,
	}, log)
	filter := moderation.NewFilter(m.ModerationKeywords)
	chatSvc := chat.NewService(repos.Chat, filter, auditSvc, repos.Tx, chat.Config{
		RejectArchived: m.ChatRejectArchivedSend,
	}, log)

	return &Services{
		Auth:       auth.NewService(repos.Users, opts.JWTSecret, opts.JWTExpiry, log),
		Pricing:    engine,
		Listings:   listingSvc,
		Orders:     orderSvc,
		Disputes:   disputeSvc,
		Chat:       chatSvc,
		Audit:      auditSvc,
		Reputation: reputationSvc,
		Moderation: filter,
	}
}
