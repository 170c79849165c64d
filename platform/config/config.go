// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EvolutionConfig provides settings for the Evolution API WhatsApp transport.
type EvolutionConfig interface {
	GetEvolutionURL() string
	GetEvolutionAPIKey() string
	GetEvolutionInstance() string
	IsEvolutionEnabled() bool
}

// WebhookConfig provides settings for the inbound message webhook.
type WebhookConfig interface {
	GetWebhookToken() string
	GetWebhookDedupTTL() time.Duration
}

// EngineConfig provides settings for the lead assignment engine.
type EngineConfig interface {
	GetResponseTimeout() time.Duration
	GetLeadWaitWindow() time.Duration
	GetLeadRedirectWindow() time.Duration
}

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
}

// AlertConfig provides settings for operational email alerts.
type AlertConfig interface {
	GetAlertSMTPHost() string
	GetAlertSMTPPort() int
	GetAlertSMTPUsername() string
	GetAlertSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
	IsAlertEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	RedisURL           string
	JWTAccessSecret    string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	EvolutionURL       string
	EvolutionAPIKey    string
	EvolutionInstance  string
	WebhookToken       string
	WebhookDedupTTL    time.Duration
	ResponseTimeout    time.Duration
	LeadWaitWindow     time.Duration
	LeadRedirectWindow time.Duration
	AlertSMTPHost      string
	AlertSMTPPort      int
	AlertSMTPUsername  string
	AlertSMTPPassword  string
	AlertFromAddress   string
	AlertToAddress     string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string { return c.RedisURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EvolutionConfig implementation
func (c *Config) GetEvolutionURL() string      { return c.EvolutionURL }
func (c *Config) GetEvolutionAPIKey() string   { return c.EvolutionAPIKey }
func (c *Config) GetEvolutionInstance() string { return c.EvolutionInstance }
func (c *Config) IsEvolutionEnabled() bool {
	return c.EvolutionURL != "" && c.EvolutionInstance != ""
}

// WebhookConfig implementation
func (c *Config) GetWebhookToken() string           { return c.WebhookToken }
func (c *Config) GetWebhookDedupTTL() time.Duration { return c.WebhookDedupTTL }

// EngineConfig implementation
func (c *Config) GetResponseTimeout() time.Duration    { return c.ResponseTimeout }
func (c *Config) GetLeadWaitWindow() time.Duration     { return c.LeadWaitWindow }
func (c *Config) GetLeadRedirectWindow() time.Duration { return c.LeadRedirectWindow }

// AlertConfig implementation
func (c *Config) GetAlertSMTPHost() string     { return c.AlertSMTPHost }
func (c *Config) GetAlertSMTPPort() int        { return c.AlertSMTPPort }
func (c *Config) GetAlertSMTPUsername() string { return c.AlertSMTPUsername }
func (c *Config) GetAlertSMTPPassword() string { return c.AlertSMTPPassword }
func (c *Config) GetAlertFromAddress() string  { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string    { return c.AlertToAddress }
func (c *Config) IsAlertEnabled() bool {
	return c.AlertSMTPHost != "" && c.AlertToAddress != ""
}

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from environment variables, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTAccessSecret:    getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:     mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		RefreshTokenTTL:    mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		EvolutionURL:       getEnv("EVOLUTION_API_URL", ""),
		EvolutionAPIKey:    getEnv("EVOLUTION_API_KEY", ""),
		EvolutionInstance:  getEnv("EVOLUTION_INSTANCE_NAME", ""),
		WebhookToken:       getEnv("WEBHOOK_TOKEN", ""),
		WebhookDedupTTL:    mustDuration(getEnv("WEBHOOK_DEDUP_TTL", "24h")),
		ResponseTimeout:    mustDuration(getEnv("RESPONSE_TIMEOUT", "5m")),
		LeadWaitWindow:     mustDuration(getEnv("LEAD_WAIT_WINDOW", "6h")),
		LeadRedirectWindow: mustDuration(getEnv("LEAD_REDIRECT_WINDOW", "720h")),
		AlertSMTPHost:      getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPPort:      mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		AlertSMTPUsername:  getEnv("ALERT_SMTP_USERNAME", ""),
		AlertSMTPPassword:  getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress:   getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:     getEnv("ALERT_TO_ADDRESS", ""),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
