// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendPG     = "postgres"
	BackendRedis  = "redis"
)

type Config struct {
	ServiceName string
	LogLevel    string

	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	BaseCurrency currency.Unit

	CatalogDBPath string
	CatalogSeed   bool

	CartBackend         string
	MongoURI            string
	MongoDBName         string
	MongoConnectTimeout time.Duration
	MongoMaxPoolSize    uint64
	MongoMinPoolSize    uint64
	RedisAddr           string
	RedisPass           string
	CartCacheTTL        time.Duration

	LedgerBackend string
	DB            DBConfig

	LockBackend string
	LockTTL     time.Duration

	PaymentServiceAddr string
	PaymentTimeout     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OtelEndpoint    string
	OtelProbability float64
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// Load reads the order-service configuration.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	paymentTimeout, err := getEnvDuration("PAYMENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	lockTTL, err := getEnvDuration("CHECKOUT_LOCK_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("CART_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	mongoTimeout, err := getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	mongoMaxPool, err := getEnvInt("MONGO_MAX_POOL_SIZE", 100)
	if err != nil {
		return nil, err
	}
	mongoMinPool, err := getEnvInt("MONGO_MIN_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}
	if mongoMaxPool < 1 || mongoMinPool < 0 {
		return nil, fmt.Errorf("invalid mongo pool size: min %d, max %d", mongoMinPool, mongoMaxPool)
	}
	probability, err := strconv.ParseFloat(getEnv("OTEL_SAMPLE_PROBABILITY", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_PROBABILITY: %w", err)
	}
	cur, err := currency.ParseISO(getEnv("BASE_CURRENCY", "USD"))
	if err != nil {
		return nil, fmt.Errorf("invalid BASE_CURRENCY: %w", err)
	}

	cfg := &Config{
		ServiceName:         getEnv("SERVICE_NAME", "order-service"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		RequestTimeout:      requestTimeout,
		ShutdownTimeout:     10 * time.Second,
		MaxRequestBodySize:  1 << 20, // 1MB
		BaseCurrency:        cur,
		CatalogDBPath:       getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogSeed:         getEnv("CATALOG_SEED", "true") == "true",
		CartBackend:         getEnv("CART_BACKEND", BackendMemory),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:         getEnv("MONGO_DB_NAME", "cartdb"),
		MongoConnectTimeout: mongoTimeout,
		MongoMaxPoolSize:    uint64(mongoMaxPool),
		MongoMinPoolSize:    uint64(mongoMinPool),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPass:           getEnv("REDIS_PASSWORD", ""),
		CartCacheTTL:        cacheTTL,
		LedgerBackend:       getEnv("LEDGER_BACKEND", BackendMemory),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "orders"),
		},
		LockBackend:        getEnv("CHECKOUT_LOCK_BACKEND", BackendMemory),
		LockTTL:            lockTTL,
		PaymentServiceAddr: getEnv("PAYMENT_SERVICE_ADDR", "localhost:50054"),
		PaymentTimeout:     paymentTimeout,
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-placed"),
		OtelEndpoint:       getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		OtelProbability:    probability,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CartBackend {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("invalid CART_BACKEND %q", c.CartBackend)
	}
	switch c.LedgerBackend {
	case BackendMemory, BackendPG:
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND %q", c.LedgerBackend)
	}
	switch c.LockBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid CHECKOUT_LOCK_BACKEND %q", c.LockBackend)
	}
	if c.LockBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("CHECKOUT_LOCK_BACKEND=redis requires REDIS_ADDR")
	}
	return nil
}

// PaymentConfig configures the payment gateway service.
type PaymentConfig struct {
	GRPCPort         string
	LogLevel         string
	AuthorizationTTL time.Duration
	SuccessRate      int
	OtelEndpoint     string
}

func LoadPayment() (*PaymentConfig, error) {
	ttl, err := getEnvDuration("AUTHORIZATION_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	rate, err := getEnvInt("PAYMENT_SUCCESS_RATE", 95)
	if err != nil {
		return nil, err
	}
	if rate < 0 || rate > 100 {
		return nil, fmt.Errorf("PAYMENT_SUCCESS_RATE must be between 0 and 100, got %d", rate)
	}
	return &PaymentConfig{
		GRPCPort:         getEnv("PAYMENT_SERVICE_PORT", "50054"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AuthorizationTTL: ttl,
		SuccessRate:      rate,
		OtelEndpoint:     getEnv("OTEL_EXPORTER_ENDPOINT", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
