package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr string

	// PostgresURL is empty in dev mode; stores fall back to in-memory.
	PostgresURL string
	Redis       RedisConfig

	Billing BillingConfig

	// AuthSigningKey verifies command-API bearer tokens (HS256).
	AuthSigningKey string

	// LeaseTTL bounds how long a checkout hold reserves a territory.
	LeaseTTL     time.Duration
	ReapInterval time.Duration

	Feed FeedConfig
}

// RedisConfig carries connection tuning for the lease store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BillingConfig points at the external subscription provider.
type BillingConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string

	// Price ids the provider bills at; the reconciler derives the ledger
	// tier from which one a subscription carries.
	StandardPriceID string
	DiscountPriceID string
}

// FeedConfig configures the ownership-change kafka feed. Empty brokers
// disable publishing.
type FeedConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds Config from environment variables with dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("TURF_ADDR", ":8080"),
		PostgresURL:    os.Getenv("DATABASE_URL"),
		AuthSigningKey: envOr("AUTH_SIGNING_KEY", "dev-secret-key-change-in-production"),
		LeaseTTL:       envDuration("LEASE_TTL", 10*time.Minute),
		ReapInterval:   envDuration("LEASE_REAP_INTERVAL", time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Billing: BillingConfig{
			BaseURL:         envOr("BILLING_BASE_URL", "https://billing.example.com"),
			APIKey:          os.Getenv("BILLING_API_KEY"),
			WebhookSecret:   envOr("BILLING_WEBHOOK_SECRET", "dev-webhook-secret"),
			StandardPriceID: envOr("BILLING_PRICE_STANDARD", "price_standard"),
			DiscountPriceID: envOr("BILLING_PRICE_DISCOUNT", "price_adjacent"),
		},
		Feed: FeedConfig{
			Topic: envOr("FEED_TOPIC", "turf.ownership.changes"),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Feed.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
