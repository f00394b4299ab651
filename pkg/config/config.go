// Package config loads and validates service configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Marketplace MarketplaceConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreKind selects the persistence backend.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type DatabaseConfig struct {
	Store           StoreKind
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL                string
	Password           string
	DB                 int
	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
	ReferencePriceTTL  time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// MarketplaceConfig holds the business constants each engine receives at construction.
type MarketplaceConfig struct {
	MarkupCeiling          decimal.Decimal
	PlatformFeeRate        decimal.Decimal
	SellerReleaseDelta     decimal.Decimal
	DisputePenalty         decimal.Decimal
	DisputeAdverseMarkers  []string
	ModerationKeywords     []string
	ChatRejectArchivedSend bool
}

// DefaultModerationKeywords signal payment or contact outside the platform.
var DefaultModerationKeywords = []string{
	"pix", "venmo", "paypal", "cashapp", "zelle",
	"whatsapp", "zap", "telegram",
	"fora do app", "outside the app", "off the app",
	"transferencia", "bank transfer", "wire transfer", "deposito",
	"conta bancaria", "bank account", "cpf",
	"email", "@", "telefone", "celular", "phone", "numero",
	"direto", "particular", "pessoal", "contato", "contact",
}

// DefaultMarketplace returns the canonical marketplace constants.
func DefaultMarketplace() MarketplaceConfig {
	return MarketplaceConfig{
		MarkupCeiling:          decimal.RequireFromString("1.20"),
		PlatformFeeRate:        decimal.RequireFromString("0.05"),
		SellerReleaseDelta:     decimal.RequireFromString("1.0"),
		DisputePenalty:         decimal.RequireFromString("-5.0"),
		DisputeAdverseMarkers:  []string{"procedente", "upheld"},
		ModerationKeywords:     append([]string(nil), DefaultModerationKeywords...),
		ChatRejectArchivedSend: false,
	}
}

// Load reads configuration from the environment, after an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	defaults := DefaultMarketplace()
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Store:           StoreKind(strings.ToLower(getEnv("STORE", string(StorePostgres)))),
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:                normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password:           getEnv("REDIS_PASSWORD", ""),
			DB:                 getIntEnv("REDIS_DB", 0),
			RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 120),
			IdempotencyTTL:     getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
			ReferencePriceTTL:  getDurationEnv("REFERENCE_PRICE_CACHE_TTL", time.Hour),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
			Expiry: getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		},
		Marketplace: MarketplaceConfig{
			MarkupCeiling:          getDecimalEnv("MARKUP_CEILING", defaults.MarkupCeiling),
			PlatformFeeRate:        getDecimalEnv("PLATFORM_FEE_RATE", defaults.PlatformFeeRate),
			SellerReleaseDelta:     getDecimalEnv("SELLER_RELEASE_REPUTATION_DELTA", defaults.SellerReleaseDelta),
			DisputePenalty:         getDecimalEnv("DISPUTE_PENALTY", defaults.DisputePenalty),
			DisputeAdverseMarkers:  getListEnv("DISPUTE_ADVERSE_MARKERS", defaults.DisputeAdverseMarkers),
			ModerationKeywords:     getListEnv("MODERATION_KEYWORDS", defaults.ModerationKeywords),
			ChatRejectArchivedSend: getBoolEnv("CHAT_REJECT_ARCHIVED", defaults.ChatRejectArchivedSend),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// go-redis Options.Addr wants host:port only
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
