package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Payment    PaymentConfig
	Moderation ModerationConfig
	Engagement EngagementConfig

	// SchedulerSecret authenticates POST /internal/flush calls from the
	// external scheduler.
	SchedulerSecret string
}

type PaymentConfig struct {
	Provider      string
	WebhookSecret string
	CheckoutURL   string

	// SupportedCurrencies is the provider's accepted currency set.
	SupportedCurrencies []string
	// DefaultCurrency is used when CurrencyPolicy is "fallback" and the
	// order currency is not supported.
	DefaultCurrency string
	// CurrencyPolicy is "fallback" or "reject".
	CurrencyPolicy string
}

type ModerationConfig struct {
	// ReviewerURL receives dispatched jobs for human/model review.
	ReviewerURL    string
	CallbackSecret string
	MaxAttempts    int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
}

type EngagementConfig struct {
	FlushBatchSize int
	FlushInterval  time.Duration
	LockTTL        time.Duration
	TrendingTTL    time.Duration
}

const (
	CurrencyPolicyFallback = "fallback"
	CurrencyPolicyReject   = "reject"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "edusocial"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "edusocial"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Payment: PaymentConfig{
			Provider:            strings.ToLower(getenv("PAYMENT_PROVIDER", "stripe")),
			WebhookSecret:       strings.TrimSpace(getenv("PAYMENT_WEBHOOK_SECRET", "")),
			CheckoutURL:         getenv("PAYMENT_CHECKOUT_URL", "https://checkout.example.com/session"),
			SupportedCurrencies: splitList(getenv("PAYMENT_SUPPORTED_CURRENCIES", "USD,EUR,GBP")),
			DefaultCurrency:     strings.ToUpper(getenv("PAYMENT_DEFAULT_CURRENCY", "USD")),
			CurrencyPolicy:      normalizeCurrencyPolicy(getenv("PAYMENT_CURRENCY_POLICY", CurrencyPolicyFallback)),
		},
		Moderation: ModerationConfig{
			ReviewerURL:    getenv("MODERATION_REVIEWER_URL", "http://localhost:9090/review"),
			CallbackSecret: strings.TrimSpace(getenv("MODERATION_CALLBACK_SECRET", "")),
			MaxAttempts:    getenvInt("MODERATION_MAX_ATTEMPTS", 5),
			RetryBackoff:   getenvDuration("MODERATION_RETRY_BACKOFF", 30*time.Second),
			RequestTimeout: getenvDuration("MODERATION_REQUEST_TIMEOUT", 10*time.Second),
		},
		Engagement: EngagementConfig{
			FlushBatchSize: getenvInt("ENGAGEMENT_FLUSH_BATCH_SIZE", 500),
			FlushInterval:  getenvDuration("ENGAGEMENT_FLUSH_INTERVAL", time.Minute),
			LockTTL:        getenvDuration("ENGAGEMENT_FLUSH_LOCK_TTL", 30*time.Second),
			TrendingTTL:    getenvDuration("ENGAGEMENT_TRENDING_TTL", 5*time.Minute),
		},

		SchedulerSecret: strings.TrimSpace(getenv("SCHEDULER_SECRET", "")),
	}

	return cfg
}

func normalizeCurrencyPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CurrencyPolicyReject:
		return CurrencyPolicyReject
	default:
		return CurrencyPolicyFallback
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
