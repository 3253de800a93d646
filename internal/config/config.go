package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const PROD_STRING = "prod"

const (
	KVBackendRedis  = "redis"
	KVBackendMemory = "memory"
)

// AuthConfig holds the access token settings shared by the server and the issuetoken command.
type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"court-booking-engine"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"1h"`
}

func (a *AuthConfig) validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if a.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

// Config holds all application configuration loaded from environment.
type Config struct {
	AuthConfig

	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	ProdOrigins string `envconfig:"PROD_ORIGINS"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	DBDSN         string `envconfig:"DB_DSN" required:"true"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	// KVBackend selects the shared lock/cache store: "redis" or "memory".
	// "memory" is only safe with a single instance.
	KVBackend     string `envconfig:"KV_BACKEND" default:"redis"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	LockTTL             time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	ConflictCacheTTL    time.Duration `envconfig:"CONFLICT_CACHE_TTL" default:"5m"`
	ConflictCacheMargin time.Duration `envconfig:"CONFLICT_CACHE_MARGIN" default:"2h"`
	StatsCacheTTL       time.Duration `envconfig:"STATS_CACHE_TTL" default:"60s"`
	CancelCutoff        time.Duration `envconfig:"CANCEL_CUTOFF" default:"2h"`
	SlotStride          time.Duration `envconfig:"SLOT_STRIDE" default:"30m"`
	BulkConcurrency     int           `envconfig:"BULK_CONCURRENCY" default:"8"`
	// Timezone interprets calendar dates in availability queries.
	Timezone string `envconfig:"BOOKING_TIMEZONE" default:"UTC"`

	RabbitURL     string `envconfig:"RABBIT_URL"`
	EventExchange string `envconfig:"EVENT_EXCHANGE" default:"booking.events"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"court-booking-engine"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == PROD_STRING
}

// Location returns the configured booking timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAuth loads only the access token settings.
func LoadAuth() (*AuthConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	var cfg AuthConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if err := c.AuthConfig.validate(); err != nil {
		return err
	}
	c.KVBackend = strings.ToLower(c.KVBackend)
	if c.KVBackend != KVBackendRedis && c.KVBackend != KVBackendMemory {
		return fmt.Errorf("KV_BACKEND must be %q or %q, got %q", KVBackendRedis, KVBackendMemory, c.KVBackend)
	}
	if c.KVBackend == KVBackendMemory && c.IsProduction() {
		return fmt.Errorf("KV_BACKEND=%s cannot coordinate multiple instances and is not allowed in production", KVBackendMemory)
	}
	for name, d := range map[string]time.Duration{
		"LOCK_TTL":           c.LockTTL,
		"CONFLICT_CACHE_TTL": c.ConflictCacheTTL,
		"STATS_CACHE_TTL":    c.StatsCacheTTL,
		"SLOT_STRIDE":        c.SlotStride,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.ConflictCacheMargin < 0 || c.CancelCutoff < 0 {
		return fmt.Errorf("CONFLICT_CACHE_MARGIN and CANCEL_CUTOFF must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}
	return nil
}
