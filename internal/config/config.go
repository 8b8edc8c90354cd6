package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Stripe   StripeConfig
	Mailgun  MailgunConfig
	NATS     NATSConfig
	Redis    RedisConfig
	Secrets  SecretsConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Environment    string
	Port           int
	MetricsPort    int
	RateLimitRPS   float64
	RateLimitBurst int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string // overrides the individual fields when set
	Host     string
	User     string
	Password string
	Database string
	SSLMode  string
	Port     int
	MaxConns int32
	MinConns int32
}

// StripeConfig holds payment gateway settings. SecretKey and WebhookSecret
// are filled by ResolveSecrets from the *Path fields.
type StripeConfig struct {
	SecretKeyPath     string
	WebhookSecretPath string
	BaseURL           string
	SecretKey         string
	WebhookSecret     string
	Timeout           time.Duration
	MaxNetworkRetries int64
}

// MailgunConfig holds receipt email settings. Email is disabled without a domain.
type MailgunConfig struct {
	Domain     string
	From       string
	APIBase    string
	APIKeyPath string
	APIKey     string
}

// NATSConfig holds push-notification settings. Push is disabled without a URL.
type NATSConfig struct {
	URL     string
	Subject string
}

// RedisConfig holds webhook dedupe and sweep lock settings
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	DedupeTTL time.Duration
}

// SecretsConfig selects the secret store
type SecretsConfig struct {
	Provider       string // env, file, aws, vault, gcp
	FileRoot       string
	AWSRegion      string
	AWSProfile     string
	AWSEndpoint    string
	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMount     string
	VaultKVVersion string
	VaultNamespace string
	GCPProjectID   string
	CacheTTL       time.Duration
}

// AuthConfig holds token verification settings. Either JWTSecret (HS256)
// or JWTPublicKeyFile (RS256) must be set.
type AuthConfig struct {
	JWTSecretPath    string
	JWTSecret        string
	JWTPublicKeyFile string
	Issuer           string
	Audience         string
}

// BillingConfig holds reconciliation and notification settings
type BillingConfig struct {
	ReceiptPrefix           string
	SweepSchedule           string
	NotificationMaxAttempts int
	SweepBatchSize          int
	SweepLockTTL            time.Duration
	SweepMinAge             time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadDotEnv loads a .env file into the environment when present
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
			Environment:    getEnv("ENVIRONMENT", "development"),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "slot_billing"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Stripe: StripeConfig{
			SecretKeyPath:     getEnv("STRIPE_SECRET_KEY_PATH", "STRIPE_SECRET_KEY"),
			WebhookSecretPath: getEnv("STRIPE_WEBHOOK_SECRET_PATH", "STRIPE_WEBHOOK_SECRET"),
			BaseURL:           getEnv("STRIPE_BASE_URL", ""),
			Timeout:           getEnvAsDuration("STRIPE_TIMEOUT", 30*time.Second),
			MaxNetworkRetries: int64(getEnvAsInt("STRIPE_MAX_NETWORK_RETRIES", 2)),
		},
		Mailgun: MailgunConfig{
			Domain:     getEnv("MAILGUN_DOMAIN", ""),
			From:       getEnv("MAILGUN_FROM", ""),
			APIBase:    getEnv("MAILGUN_API_BASE", ""),
			APIKeyPath: getEnv("MAILGUN_API_KEY_PATH", "MAILGUN_API_KEY"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_PAYMENT_SUBJECT", "billing.payment.completed"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			DedupeTTL: getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		},
		Secrets: SecretsConfig{
			Provider:       getEnv("SECRETS_PROVIDER", "env"),
			FileRoot:       getEnv("SECRETS_FILE_ROOT", "/run/secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", "http://127.0.0.1:8200"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMount:     getEnv("VAULT_MOUNT", "secret"),
			VaultKVVersion: getEnv("VAULT_KV_VERSION", "v2"),
			VaultNamespace: getEnv("VAULT_NAMESPACE", ""),
			GCPProjectID:   getEnv("GCP_PROJECT_ID", ""),
			CacheTTL:       getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecretPath:    getEnv("JWT_SECRET_PATH", "JWT_SECRET"),
			JWTPublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
			Issuer:           getEnv("JWT_ISSUER", ""),
			Audience:         getEnv("JWT_AUDIENCE", ""),
		},
		Billing: BillingConfig{
			ReceiptPrefix:           getEnv("RECEIPT_PREFIX", "RCPT"),
			NotificationMaxAttempts: getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),
			SweepSchedule:           getEnv("NOTIFICATION_SWEEP_SCHEDULE", "*/5 * * * *"),
			SweepBatchSize:          getEnvAsInt("NOTIFICATION_SWEEP_BATCH", 100),
			SweepLockTTL:            getEnvAsDuration("NOTIFICATION_SWEEP_LOCK_TTL", 5*time.Minute),
			SweepMinAge:             getEnvAsDuration("NOTIFICATION_SWEEP_MIN_AGE", 10*time.Minute),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	if cfg.Billing.ReceiptPrefix == "" || strings.ContainsAny(cfg.Billing.ReceiptPrefix, " -") {
		return nil, fmt.Errorf("RECEIPT_PREFIX must be non-empty without spaces or dashes")
	}

	return cfg, nil
}

type secretRef struct {
	name string
	path string
	dst  *string
}

// ResolveSecrets fills credential fields from sm. The gateway and token
// secrets are required; the Mailgun key only when email is enabled.
func (c *Config) ResolveSecrets(ctx context.Context, sm ports.SecretManager) error {
	required := []secretRef{
		{"stripe secret key", c.Stripe.SecretKeyPath, &c.Stripe.SecretKey},
		{"stripe webhook secret", c.Stripe.WebhookSecretPath, &c.Stripe.WebhookSecret},
	}
	if c.Auth.JWTPublicKeyFile == "" {
		required = append(required, secretRef{"jwt secret", c.Auth.JWTSecretPath, &c.Auth.JWTSecret})
	}
	if c.Mailgun.Domain != "" {
		required = append(required, secretRef{"mailgun api key", c.Mailgun.APIKeyPath, &c.Mailgun.APIKey})
	}

	for _, r := range required {
		if r.path == "" {
			return fmt.Errorf("%s: no secret path configured", r.name)
		}
		secret, err := sm.GetSecret(ctx, r.path)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		*r.dst = secret.Value
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsProduction reports whether the service runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
