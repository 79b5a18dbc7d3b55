package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only fit for local runs; startup warns when it is in use.
const DefaultJWTSecret = "your-super-secret-jwt-key-change-in-production"

type Config struct {
	ServerAddr string

	DatabaseURL string
	DBDriver    string

	JWTSecret []byte
	JWTExpiry time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	TrustedHosts           []string
	CSRFEnabled            bool
	SecurityHeadersEnabled bool

	LogLevel  string
	LogFormat string

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("notice: .env file not found, using system environment variables")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		ServerAddr: EnvDefault("SERVER_ADDR", ":3000"),

		DatabaseURL: EnvDefault("DATABASE_URL", "postgres://localhost/taleji_blog?sslmode=disable"),
		DBDriver:    EnvDefault("DB_DRIVER", "pgx"),

		JWTSecret: []byte(EnvDefault("JWT_SECRET", DefaultJWTSecret)),
		JWTExpiry: time.Duration(EnvIntDefault("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		RateLimitRequests: EnvIntDefault("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(EnvIntDefault("RATE_LIMIT_WINDOW_SECS", 60)) * time.Second,

		TrustedHosts:           CSV(EnvDefault("TRUSTED_HOSTS", "localhost,.your-domain.com")),
		CSRFEnabled:            EnvBoolDefault("CSRF_ENABLED", true),
		SecurityHeadersEnabled: EnvBoolDefault("SECURITY_HEADERS_ENABLED", true),

		LogLevel:  EnvDefault("LOG_LEVEL", "info"),
		LogFormat: EnvDefault("LOG_FORMAT", "json"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "security_events"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY_HOURS must be positive"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SECS must be positive"))
	}
	return errors.Join(errs...)
}

// UsesDefaultSecret reports whether JWT_SECRET was left at its shipped value.
func (c Config) UsesDefaultSecret() bool {
	return string(c.JWTSecret) == DefaultJWTSecret
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvIntDefault returns def for unset values only. A malformed value yields 0
// so Validate can reject it instead of silently using the default.
func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
