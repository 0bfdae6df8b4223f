package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr        string
	PostgresDSN string

	KafkaBrokers []string
	EventsTopic  string

	RedisURL       string
	StatusCacheTTL time.Duration

	OutboxInterval time.Duration
}

const defaultStatusCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables. Empty Postgres/Kafka/
// Redis settings mean the corresponding backend is not wired; the in-memory
// fallbacks are used instead.
func FromEnv() Config {
	cfg := Config{
		Addr:           getenv("WALEZI_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("WALEZI_POSTGRES_DSN"),
		EventsTopic:    getenv("WALEZI_EVENTS_TOPIC", "guardianship.events"),
		RedisURL:       os.Getenv("WALEZI_REDIS_URL"),
		StatusCacheTTL: defaultStatusCacheTTL,
		OutboxInterval: time.Second,
	}
	if brokers := os.Getenv("WALEZI_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("WALEZI_STATUS_CACHE_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			cfg.StatusCacheTTL = parsed
		}
	}
	if interval := os.Getenv("WALEZI_OUTBOX_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			cfg.OutboxInterval = parsed
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
