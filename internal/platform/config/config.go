// Package config builds the process configuration from environment variables.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	platformstrings "instantverify/pkg/platform/strings"
)

// Storage backends selectable via STORAGE.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full set of settings main needs to wire the server.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Providers ProvidersConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Storage   string
}

// Server captures HTTP server level configuration. NodeID distinguishes
// replicas that share a database; payment receipt numbers embed it.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	NodeID          int64
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit sink. An empty broker list keeps audit in memory.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	AdminToken    string
}

// ProvidersConfig points at the external verification, SMS and payment services.
// An empty base URL selects the in-process mock for that provider.
type ProvidersConfig struct {
	VerificationURL string
	VerificationKey string
	SMSURL          string
	SMSKey          string
	PaymentURL      string
	PaymentKeyID    string
	PaymentSecret   string
	Timeout         time.Duration
}

type OTPConfig struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	SendLimit   int
	SendWindow  time.Duration
}

// RateLimitConfig sets request budgets per client IP and per user.
// Zero disables the corresponding limit.
type RateLimitConfig struct {
	IPRequests   int
	UserRequests int
	Window       time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	var errs []error
	cfg := Config{
		Server: Server{
			Addr:            getEnv("INSTANTVERIFY_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
			NodeID:          int64(getInt("NODE_ID", 1, &errs)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25, &errs),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:    platformstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			AuditTopic: getEnv("AUDIT_TOPIC", "instantverify.audit"),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:        getEnv("JWT_ISSUER", "instantverify"),
			Audience:      getEnv("JWT_AUDIENCE", "instantverify-web"),
			TokenTTL:      getDuration("JWT_TTL", 24*time.Hour, &errs),
			AdminToken:    os.Getenv("ADMIN_API_TOKEN"),
		},
		Providers: ProvidersConfig{
			VerificationURL: os.Getenv("VERIFICATION_PROVIDER_URL"),
			VerificationKey: os.Getenv("VERIFICATION_PROVIDER_KEY"),
			SMSURL:          os.Getenv("SMS_PROVIDER_URL"),
			SMSKey:          os.Getenv("SMS_PROVIDER_KEY"),
			PaymentURL:      os.Getenv("PAYMENT_GATEWAY_URL"),
			PaymentKeyID:    os.Getenv("PAYMENT_KEY_ID"),
			PaymentSecret:   getEnv("PAYMENT_KEY_SECRET", "dev-payment-secret"),
			Timeout:         getDuration("PROVIDER_TIMEOUT", 10*time.Second, &errs),
		},
		OTP: OTPConfig{
			Length:      getInt("OTP_LENGTH", 6, &errs),
			TTL:         getDuration("OTP_TTL", 5*time.Minute, &errs),
			MaxAttempts: getInt("OTP_MAX_ATTEMPTS", 5, &errs),
			SendLimit:   getInt("OTP_SEND_LIMIT", 3, &errs),
			SendWindow:  getDuration("OTP_SEND_WINDOW", 10*time.Minute, &errs),
		},
		RateLimit: RateLimitConfig{
			IPRequests:   getInt("RATE_LIMIT_IP_REQUESTS", 120, &errs),
			UserRequests: getInt("RATE_LIMIT_USER_REQUESTS", 60, &errs),
			Window:       getDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Storage: getEnv("STORAGE", StorageMemory),
	}

	if cfg.Storage != StorageMemory && cfg.Storage != StoragePostgres {
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageMemory, StoragePostgres, cfg.Storage))
	}
	if cfg.Storage == StoragePostgres && cfg.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when STORAGE=postgres"))
	}
	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		errs = append(errs, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", cfg.OTP.Length))
	}

	if cfg.Server.NodeID < 0 || cfg.Server.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("NODE_ID must be between 0 and 1023, got %d", cfg.Server.NodeID))
	}
	if cfg.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimit.Window))
	}

	return cfg, errors.Join(errs...)
}

// UsesDefaultSigningKey reports whether the development JWT key is in effect.
func (c Config) UsesDefaultSigningKey() bool {
	return c.Auth.JWTSigningKey == defaultJWTSigningKey
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
