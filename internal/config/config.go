package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only acceptable for local development. Load keeps it when
// JWT_SECRET is unset and Validate rejects it in prod.
const DefaultJWTSecret = "insecure-dev-secret-change-me"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	NotifierLog   = "log"
	NotifierRedis = "redis"
)

var ErrInsecureSecret = errors.New("JWT_SECRET must be set in prod")

type Config struct {
	Env  string
	Port int

	StoreMode   string
	DBURL       string
	AutoMigrate bool

	JWTSecret  string
	TokenTTL   time.Duration
	CookieName string

	ReferralReward int64

	NotifierMode      string
	NotifyTimeout     time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	NotificationQueue string

	OTelEnabled  bool
	OTelEndpoint string

	CORSAllowedOrigins []string

	WorkerHealthPort int
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	// a missing .env is fine, real deployments inject the environment directly
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 3001),

		StoreMode:   strings.ToLower(getEnv("STORE_MODE", StoreMemory)),
		DBURL:       buildDBURL(),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

		JWTSecret:  getEnv("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:   time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		CookieName: getEnv("AUTH_COOKIE_NAME", "token"),

		ReferralReward: int64(getEnvInt("REFERRAL_REWARD", 10)),

		NotifierMode:      strings.ToLower(getEnv("NOTIFIER_MODE", NotifierLog)),
		NotifyTimeout:     time.Duration(getEnvInt("NOTIFY_TIMEOUT_MS", 3000)) * time.Millisecond,
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		NotificationQueue: getEnv("NOTIFICATION_QUEUE", "notifications:outbox"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// Validate rejects combinations the service cannot run with.
func (c Config) Validate() error {
	switch c.StoreMode {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_MODE %q", c.StoreMode)
	}

	switch c.NotifierMode {
	case NotifierLog, NotifierRedis:
	default:
		return fmt.Errorf("unknown NOTIFIER_MODE %q", c.NotifierMode)
	}

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL_HOURS must be positive")
	}

	if c.ReferralReward < 0 {
		return errors.New("REFERRAL_REWARD must not be negative")
	}

	if c.IsProd() && (c.UsesDefaultSecret() || c.JWTSecret == "") {
		return ErrInsecureSecret
	}

	return nil
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "authservice")
	pass := getEnv("DB_PASSWORD", "authservice")
	name := getEnv("DB_NAME", "authservice")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			slog.Warn("invalid boolean in environment, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return b
	}
	return fallback
}

func splitList(raw string) []string {
	out := make([]string, 0)

	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
