// Package config loads service configuration from the environment. A .env
// file in the working directory is honored when present, so local
// development does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the runtime configuration for the market ledger service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// AdminKey gates market resolution and fee withdrawal. Empty disables
	// the admin endpoints.
	AdminKey string

	// MinStake is the minimum stake to create a market (default 1 unit).
	MinStake decimal.Decimal

	// InitialBalance is credited to each owner on first activity
	// (default 0; production users bring real funds).
	InitialBalance decimal.Decimal

	// PlatformFeeBps is withheld from winning payouts, in basis points
	// (default 0 = no fee).
	PlatformFeeBps int64

	// Stake caps, zero = unlimited.
	MaxStakePerMarket decimal.Decimal
	MaxTotalOpenStake decimal.Decimal
}

// Load reads configuration from the environment, after loading a .env file
// if one exists (missing files are silently ignored).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        envStr("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		AdminKey:    os.Getenv("ADMIN_KEY"),
		MinStake:    decimal.NewFromInt(1),
	}

	ttlSeconds, err := envInt("CACHE_TTL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttlSeconds) * time.Second

	if cfg.PlatformFeeBps, err = envInt("PLATFORM_FEE_BPS", 0); err != nil {
		return nil, err
	}

	if cfg.MinStake, err = envDecimal("MIN_STAKE", cfg.MinStake); err != nil {
		return nil, err
	}
	if cfg.InitialBalance, err = envDecimal("INITIAL_BALANCE", decimal.Zero); err != nil {
		return nil, err
	}
	if cfg.MaxStakePerMarket, err = envDecimal("MAX_STAKE_PER_MARKET", decimal.Zero); err != nil {
		return nil, err
	}
	if cfg.MaxTotalOpenStake, err = envDecimal("MAX_TOTAL_OPEN_STAKE", decimal.Zero); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func envDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
