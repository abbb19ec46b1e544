package auth

import (
	"fmt"
	"time"

	"email-marketing-backend/internal/config"
)

// AuthConfig holds the credential settings shared by the token service and the gate
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	APIKeys   []string
}

// NewAuthConfig extracts the authentication settings from the application config
func NewAuthConfig(cfg *config.Config) *AuthConfig {
	return &AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL(),
		APIKeys:   append([]string(nil), cfg.APIKeys...),
	}
}

// ValidateConfig validates the authentication configuration
func (c *AuthConfig) ValidateConfig() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}
