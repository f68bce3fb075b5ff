// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

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

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for building links in outbound mail.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// TicketingConfig provides settings for the Odoo helpdesk integration.
type TicketingConfig interface {
	GetOdooURL() string
	GetOdooDatabase() string
	GetOdooUserID() int
	GetOdooAPIKey() string
	GetEscalationRequesterName() string
	GetEscalationRequesterEmail() string
	IsTicketingEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepCronSpec() string
	GetSweepWorkers() int
}

// TokenConfig provides settings for confirmation tokens.
type TokenConfig interface {
	GetTokenExpiryDays() int
}

// CronConfig provides the shared secret for the HTTP sweep trigger.
type CronConfig interface {
	GetCronSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	AppBaseURL               string
	EmailEnabled             bool
	BrevoAPIKey              string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	OdooURL                  string
	OdooDatabase             string
	OdooUserID               int
	OdooAPIKey               string
	EscalationRequesterName  string
	EscalationRequesterEmail string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	SweepCronSpec            string
	SweepWorkers             int
	TokenExpiryDays          int
	CronSecret               string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// TicketingConfig implementation
func (c *Config) GetOdooURL() string                  { return c.OdooURL }
func (c *Config) GetOdooDatabase() string             { return c.OdooDatabase }
func (c *Config) GetOdooUserID() int                  { return c.OdooUserID }
func (c *Config) GetOdooAPIKey() string               { return c.OdooAPIKey }
func (c *Config) GetEscalationRequesterName() string  { return c.EscalationRequesterName }
func (c *Config) GetEscalationRequesterEmail() string { return c.EscalationRequesterEmail }
func (c *Config) IsTicketingEnabled() bool            { return c.OdooURL != "" && c.OdooAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSweepCronSpec() string  { return c.SweepCronSpec }
func (c *Config) GetSweepWorkers() int      { return c.SweepWorkers }

// TokenConfig implementation
func (c *Config) GetTokenExpiryDays() int { return c.TokenExpiryDays }

// CronConfig implementation
func (c *Config) GetCronSecret() string { return c.CronSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:               getEnv("APP_BASE_URL", "http://localhost:4200"),
		EmailEnabled:             emailEnabled && (brevoAPIKey != "" || smtpHost != ""),
		BrevoAPIKey:              brevoAPIKey,
		SMTPHost:                 smtpHost,
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Partner Portal"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		OdooURL:                  getEnv("ODOO_URL", ""),
		OdooDatabase:             getEnv("ODOO_DATABASE", ""),
		OdooUserID:               mustInt(getEnv("ODOO_USER_ID", "0")),
		OdooAPIKey:               getEnv("ODOO_API_KEY", ""),
		EscalationRequesterName:  getEnv("ESCALATION_REQUESTER_NAME", "System (Automatische Eskalation)"),
		EscalationRequesterEmail: getEnv("ESCALATION_REQUESTER_EMAIL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SweepCronSpec:            getEnv("BOOKING_SWEEP_CRON", "0 * * * *"),
		SweepWorkers:             mustInt(getEnv("BOOKING_SWEEP_WORKERS", "5")),
		TokenExpiryDays:          mustInt(getEnv("BOOKING_TOKEN_EXPIRY_DAYS", "7")),
		CronSecret:               getEnv("CRON_SECRET", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.IsTicketingEnabled() && cfg.EscalationRequesterEmail == "" {
		return nil, fmt.Errorf("ESCALATION_REQUESTER_EMAIL is required when ticketing is enabled")
	}
	if cfg.SweepWorkers < 1 {
		cfg.SweepWorkers = 5
	}
	if cfg.TokenExpiryDays < 1 {
		cfg.TokenExpiryDays = 7
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
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
