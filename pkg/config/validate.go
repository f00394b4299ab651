package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateCore ensures critical configuration is present and coherent.
func (c *Config) ValidateCore() error {
	var problems []string

	switch c.Database.Store {
	case StorePostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			problems = append(problems, "DATABASE_URL")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE (unknown value %q)", c.Database.Store))
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		problems = append(problems, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		problems = append(problems, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		problems = append(problems, "JWT_SECRET")
	}
	problems = append(problems, c.Marketplace.problems()...)

	if len(problems) > 0 {
		return fmt.Errorf("missing or invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

func (m MarketplaceConfig) problems() []string {
	var out []string
	if m.MarkupCeiling.LessThan(decimal.NewFromInt(1)) {
		out = append(out, "MARKUP_CEILING (must be >= 1)")
	}
	if m.PlatformFeeRate.IsNegative() || m.PlatformFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		out = append(out, "PLATFORM_FEE_RATE (must be in [0,1))")
	}
	if !m.SellerReleaseDelta.IsPositive() {
		out = append(out, "SELLER_RELEASE_REPUTATION_DELTA (must be > 0)")
	}
	if m.DisputePenalty.IsPositive() {
		out = append(out, "DISPUTE_PENALTY (must be <= 0)")
	}
	if len(m.ModerationKeywords) == 0 {
		out = append(out, "MODERATION_KEYWORDS")
	}
	return out
}
