package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "email-marketing-backend/internal/errors"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds all configuration for the application
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	AppVersion  string `mapstructure:"APP_VERSION"`

	// Database configuration
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DatabaseHost     string `mapstructure:"DB_HOST"`
	DatabasePort     string `mapstructure:"DB_PORT"`
	DatabaseUser     string `mapstructure:"DB_USER"`
	DatabasePassword string `mapstructure:"DB_PASSWORD"`
	DatabaseName     string `mapstructure:"DB_NAME"`
	DatabaseSSLMode  string `mapstructure:"DB_SSL_MODE"`
	DBMaxOpenConns   int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	// Token and credential configuration
	JWTSecret       string   `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes int      `mapstructure:"TOKEN_TTL_MINUTES"`
	APIKeys         []string `mapstructure:"API_KEYS"`

	// IAM configuration
	UnknownRolePolicy string   `mapstructure:"IAM_UNKNOWN_ROLE_POLICY"`
	DefaultRoles      []string `mapstructure:"DEFAULT_ROLES"`

	// CORS configuration
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	// Dispatch configuration
	QueueBackend    string        `mapstructure:"QUEUE_BACKEND"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	DispatchQueue   string        `mapstructure:"DISPATCH_QUEUE"`
	DispatchWorkers int           `mapstructure:"DISPATCH_WORKERS"`
	DispatchLockTTL time.Duration `mapstructure:"DISPATCH_LOCK_TTL"`
	// DispatchSweepInterval is how often workers re-enqueue campaigns stuck in sending
	DispatchSweepInterval time.Duration `mapstructure:"DISPATCH_SWEEP_INTERVAL"`

	// Mail configuration
	MailProvider   string `mapstructure:"MAIL_PROVIDER"`
	SMTPHost       string `mapstructure:"SMTP_HOST"`
	SMTPPort       int    `mapstructure:"SMTP_PORT"`
	SMTPUsername   string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword   string `mapstructure:"SMTP_PASSWORD"`
	SMTPUseTLS     bool   `mapstructure:"SMTP_USE_TLS"`
	SMTPFromEmail  string `mapstructure:"SMTP_FROM_EMAIL"`
	SMTPTimeoutSec int    `mapstructure:"SMTP_TIMEOUT_SEC"`

	// AWS configuration (SES mail provider)
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Set default values
	setDefaults(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.DatabaseURL == "" {
		config.DatabaseURL = buildDatabaseURL(&config)
	}
	config.APIKeys = cleanList(config.APIKeys)
	config.DefaultRoles = cleanList(config.DefaultRoles)
	config.AllowedOrigins = cleanList(config.AllowedOrigins)

	// Validate required fields
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_VERSION", "dev")

	// Database defaults
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "email_marketing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	// Token defaults
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("TOKEN_TTL_MINUTES", 60)
	v.SetDefault("API_KEYS", []string{"dev-internal-key"})

	// IAM defaults
	v.SetDefault("IAM_UNKNOWN_ROLE_POLICY", "ignore")
	v.SetDefault("DEFAULT_ROLES", []string{"journey-architect"})

	// CORS defaults
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8080"})

	// Dispatch defaults
	v.SetDefault("QUEUE_BACKEND", "memory")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DISPATCH_QUEUE", "campaigns:dispatch")
	v.SetDefault("DISPATCH_WORKERS", 2)
	v.SetDefault("DISPATCH_LOCK_TTL", 10*time.Minute)
	v.SetDefault("DISPATCH_SWEEP_INTERVAL", time.Minute)

	// Mail defaults
	v.SetDefault("MAIL_PROVIDER", "smtp")
	v.SetDefault("SMTP_HOST", "mailhog")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_USE_TLS", false)
	v.SetDefault("SMTP_FROM_EMAIL", "no-reply@constellation.local")
	v.SetDefault("SMTP_TIMEOUT_SEC", 15)

	// AWS defaults
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
}

func buildDatabaseURL(config *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		config.DatabaseUser,
		config.DatabasePassword,
		config.DatabaseHost,
		config.DatabasePort,
		config.DatabaseName,
		config.DatabaseSSLMode,
	)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validate(config *Config) error {
	if config.Environment == "production" {
		if config.JWTSecret == defaultJWTSecret || config.JWTSecret == "" {
			return apperrors.ErrJWTSecretNotSet
		}
		if len(config.APIKeys) == 0 {
			return apperrors.ErrAPIKeysNotSet
		}
	}

	if config.DatabaseName == "" && config.DatabaseURL == "" {
		return fmt.Errorf("database name is required")
	}
	if config.TokenTTLMinutes <= 0 {
		return apperrors.NewConfigurationError("TOKEN_TTL_MINUTES must be positive")
	}

	switch config.QueueBackend {
	case "memory":
	case "redis":
		if config.RedisURL == "" {
			return apperrors.ErrRedisURLNotSet
		}
	default:
		return apperrors.ErrUnknownQueue
	}

	switch config.MailProvider {
	case "smtp", "ses", "log":
	default:
		return apperrors.ErrUnknownMailer
	}

	switch config.UnknownRolePolicy {
	case "ignore", "reject":
	default:
		return apperrors.ErrUnknownRolePolicy
	}

	if config.DispatchWorkers < 1 {
		config.DispatchWorkers = 1
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TokenTTL returns the configured token lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// SMTPTimeout returns the SMTP dial/IO timeout
func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSec) * time.Second
}
