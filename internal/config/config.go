package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Supabase
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string
	AutoMigrate bool

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	// Email
	ResendAPIKey          string
	ResendAPIBaseURL      string
	FromEmail             string
	ReplyToEmail          string
	EmailMaxAttempts      int
	EmailRetryDelay       time.Duration
	AutoSendDeliveryEmail bool

	// Signed URLs
	URLRefreshThreshold time.Duration
	SignedURLTTL        time.Duration
	UploadSignedURLTTL  time.Duration

	// Webhook reconciliation
	WebhookLookupAttempts int
	WebhookLookupBackoff  time.Duration

	// Downloads
	DownloadConcurrency int

	// Server
	Port              string
	Environment       string
	BaseURL           string
	EnableAdminRoutes bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDatabase is Load for commands that only talk to Postgres.
func LoadDatabase() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("invalid configuration: DATABASE_URL is required")
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv() *Config {
	return &Config{
		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "photos"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            strings.ToLower(getEnv("CURRENCY", "usd")),

		ResendAPIKey:          getEnv("RESEND_API_KEY", ""),
		ResendAPIBaseURL:      getEnv("RESEND_API_BASE_URL", "https://api.resend.com"),
		FromEmail:             getEnv("FROM_EMAIL", "onboarding@resend.dev"),
		ReplyToEmail:          getEnv("REPLY_TO_EMAIL", ""),
		EmailMaxAttempts:      getEnvInt("EMAIL_MAX_ATTEMPTS", 3),
		EmailRetryDelay:       getEnvDuration("EMAIL_RETRY_DELAY", 2*time.Second),
		AutoSendDeliveryEmail: getEnvBool("AUTO_SEND_DELIVERY_EMAIL", true),

		URLRefreshThreshold: getEnvDuration("URL_REFRESH_THRESHOLD", 6*24*time.Hour),
		SignedURLTTL:        getEnvDuration("SIGNED_URL_TTL", 7*24*time.Hour),
		UploadSignedURLTTL:  getEnvDuration("UPLOAD_SIGNED_URL_TTL", 365*24*time.Hour),

		WebhookLookupAttempts: getEnvInt("WEBHOOK_LOOKUP_ATTEMPTS", 3),
		WebhookLookupBackoff:  getEnvDuration("WEBHOOK_LOOKUP_BACKOFF", 500*time.Millisecond),

		DownloadConcurrency: getEnvInt("DOWNLOAD_CONCURRENCY", 4),

		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		BaseURL:           strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		EnableAdminRoutes: getEnvBool("ENABLE_ADMIN_ROUTES", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "auto"),
	}
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.EmailMaxAttempts < 1 {
		return fmt.Errorf("EMAIL_MAX_ATTEMPTS must be at least 1")
	}
	if c.WebhookLookupAttempts < 1 {
		return fmt.Errorf("WEBHOOK_LOOKUP_ATTEMPTS must be at least 1")
	}
	if c.SignedURLTTL <= c.URLRefreshThreshold {
		return fmt.Errorf("SIGNED_URL_TTL must be longer than URL_REFRESH_THRESHOLD")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return d
}
