package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the marketplace server.
type Server struct {
	Addr string

	// Marketplace is the deployment address; derived accounts and the
	// registry singleton key on it.
	Marketplace string
	// FeeBps is the marketplace fee on fraction trades, in basis points.
	FeeBps uint64

	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	JWTSigningKey string

	// RateLimit admits this many requests per caller per RateLimitWindow.
	// Zero disables limiting.
	RateLimit       int
	RateLimitWindow time.Duration

	ShutdownTimeout time.Duration
}

// RedisConfig tunes the optional listing snapshot cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SnapshotTTL bounds staleness of cached listing snapshots.
	SnapshotTTL time.Duration
}

// KafkaConfig points the event publisher at a broker set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envOr("FRACMARKET_ADDR", ":8080"),
		Marketplace: envOr("FRACMARKET_MARKETPLACE", "fracmarket-main"),
		FeeBps:      envUint("FRACMARKET_FEE_BPS", 100),
		PostgresDSN: os.Getenv("FRACMARKET_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("FRACMARKET_REDIS_URL"),
			PoolSize:     int(envUint("FRACMARKET_REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envUint("FRACMARKET_REDIS_MIN_IDLE", 2)),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			SnapshotTTL:  envDuration("FRACMARKET_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("FRACMARKET_KAFKA_BROKERS")),
			Topic:   envOr("FRACMARKET_KAFKA_TOPIC", "fracmarket.events"),
		},
		// Default for development, override in production.
		JWTSigningKey:   envOr("FRACMARKET_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RateLimit:       int(envUint("FRACMARKET_RATE_LIMIT", 100)),
		RateLimitWindow: envDuration("FRACMARKET_RATE_LIMIT_WINDOW", time.Minute),
		ShutdownTimeout: envDuration("FRACMARKET_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
