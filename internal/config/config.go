package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// API settings
	APIAddr        string
	APIKey         string
	DevMode        bool
	RequestTimeout time.Duration

	// Pool settings
	PoolConfigPath          string
	DefaultWithdrawCooldown time.Duration
	MaxPriceImpactBps       int

	// Swap rate limiting (requests per second per client)
	SwapRateLimit float64
	SwapRateBurst int

	// Redis settings; an empty address keeps state in memory only
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse settings; an empty address disables event history
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	LogLevel string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr:        getEnv("API_ADDR", ":8090"),
		APIKey:         getEnv("API_KEY", ""),
		DevMode:        getBoolEnv("DEV_MODE", false),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 5*time.Second),

		// Pools
		PoolConfigPath:          getEnv("POOL_CONFIG_PATH", "internal/config/pools.json"),
		DefaultWithdrawCooldown: getDurationEnv("WITHDRAW_COOLDOWN", 0),
		MaxPriceImpactBps:       getIntEnv("MAX_PRICE_IMPACT_BPS", 1000),

		// Rate limiting
		SwapRateLimit: getFloatEnv("SWAP_RATE_LIMIT", 5),
		SwapRateBurst: getIntEnv("SWAP_RATE_BURST", 10),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "amm"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIAddr) == "" {
		return fmt.Errorf("API_ADDR is required")
	}
	if strings.TrimSpace(c.PoolConfigPath) == "" {
		return fmt.Errorf("POOL_CONFIG_PATH is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.DefaultWithdrawCooldown < 0 {
		return fmt.Errorf("WITHDRAW_COOLDOWN must not be negative")
	}
	if c.MaxPriceImpactBps < 0 || c.MaxPriceImpactBps > 10000 {
		return fmt.Errorf("MAX_PRICE_IMPACT_BPS must be between 0 and 10000")
	}
	if c.SwapRateLimit <= 0 || c.SwapRateBurst <= 0 {
		return fmt.Errorf("SWAP_RATE_LIMIT and SWAP_RATE_BURST must be positive")
	}
	if c.ClickHouseAddr != "" && c.ClickHouseDatabase == "" {
		return fmt.Errorf("CLICKHOUSE_DATABASE is required when CLICKHOUSE_ADDR is set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
