package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"fairtix/internal/app"
	"fairtix/internal/auth"
	"fairtix/internal/domain"
	"fairtix/internal/handler"
	"fairtix/internal/middleware"
	"fairtix/internal/repository/memory"
	"fairtix/pkg/cache"
	"fairtix/pkg/config"
	"fairtix/pkg/logger"
	"fairtix/pkg/validator"
)

func main() {
	cfg := config.Load()
	log := logger.New("fairtix-api")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting marketplace API", map[string]interface{}{
		"port":  cfg.Server.Port,
		"store": cfg.Database.Store,
	})

	checks := map[string]handler.Check{}

	var repos app.Repositories
	switch cfg.Database.Store {
	case config.StoreMemory:
		repos = app.MemoryRepositories(memory.New())
		log.Warn("Using in-memory store, data is lost on restart", nil)
	default:
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		log.Info("Database connected", nil)

		repos = app.PostgresRepositories(db)
		checks["database"] = db.PingContext
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisUp := true
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		if cfg.Database.Store != config.StoreMemory {
			log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		redisUp = false
		log.Warn("Redis unavailable, running without rate limits, idempotency or token revocation", map[string]interface{}{
			"error": err.Error(),
		})
	}

	opts := app.Options{
		Marketplace: cfg.Marketplace,
		JWTSecret:   cfg.JWT.Secret,
		JWTExpiry:   cfg.JWT.Expiry,
	}
	routerCfg := handler.RouterConfig{
		Validator: validator.New(),
		Checks:    checks,
		Logger:    log,
	}
	var blacklist middleware.TokenBlacklist
	if redisUp {
		log.Info("Redis connected", nil)
		opts.PriceCache = cache.NewFromClient(redisClient, "fairtix:")
		opts.PriceCacheTTL = cfg.Redis.ReferencePriceTTL

		tokens := middleware.NewRedisRevocationList(redisClient)
		blacklist = tokens
		routerCfg.Revoker = tokens
		routerCfg.RateLimit = middleware.NewRateLimiter(redisClient, cfg.Redis.RateLimitPerMinute, time.Minute, log).Limit
		routerCfg.Idempotency = middleware.NewIdempotencyMiddleware(redisClient, cfg.Redis.IdempotencyTTL, log).Require
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	svcs := app.NewServices(repos, opts, log)
	routerCfg.Services = svcs
	routerCfg.Auth = middleware.NewAuthMiddleware(cfg.JWT.Secret, blacklist, log)

	if cfg.Database.Store == config.StoreMemory {
		seedAdmin(svcs.Auth, log)
	}

	r := handler.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Marketplace API started", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace API...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Marketplace API forced to shutdown", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Info("Marketplace API stopped gracefully", nil)
}

// seedAdmin registers a bootstrap admin for the in-memory store, which starts
// empty. The token is logged so a developer can call the admin routes.
func seedAdmin(svc *auth.Service, log logger.Logger) {
	ctx := context.Background()
	email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	if email == "" {
		email = "admin@fairtix.local"
	}

	user, err := svc.Register(ctx, &auth.RegisterRequest{
		Email:    email,
		Name:     "Bootstrap Admin",
		UserType: domain.UserTypeAdmin,
	})
	if err != nil {
		log.Fatal("Failed to seed admin", map[string]interface{}{"error": err.Error()})
	}
	token, err := svc.IssueToken(ctx, user.ID)
	if err != nil {
		log.Fatal("Failed to issue admin token", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Bootstrap admin ready", map[string]interface{}{
		"user_id":      user.ID,
		"email":        user.Email,
		"access_token": token.AccessToken,
		"expires_at":   token.ExpiresAt,
	})
}
