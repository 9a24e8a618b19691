package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Postgres struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Config struct {
	HTTPPort           string
	GRPCPort           string
	StorefrontBaseURL  string
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	Postgres           Postgres
	PaymentTimeout     time.Duration
	FulfillmentTimeout time.Duration
	CartTimeout        time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	OfferCacheTTL      time.Duration
	SessionIdleTTL     time.Duration
	JanitorInterval    time.Duration
	MaxRequestBodySize int64
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		GRPCPort:          getEnv("GRPC_PORT", "50057"),
		StorefrontBaseURL: strings.TrimRight(getEnv("STOREFRONT_BASE_URL", "http://localhost:8000"), "/"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		Postgres: Postgres{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "checkout"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	durations := []struct {
		key   string
		def   string
		field *time.Duration
	}{
		{"PAYMENT_TIMEOUT", "10s", &cfg.PaymentTimeout},
		{"FULFILLMENT_TIMEOUT", "5s", &cfg.FulfillmentTimeout},
		{"CART_TIMEOUT", "5s", &cfg.CartTimeout},
		{"REQUEST_TIMEOUT", "30s", &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
		{"OFFER_CACHE_TTL", "15m", &cfg.OfferCacheTTL},
		{"SESSION_IDLE_TTL", "30m", &cfg.SessionIdleTTL},
		{"JANITOR_INTERVAL", "1m", &cfg.JanitorInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.field = v
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
