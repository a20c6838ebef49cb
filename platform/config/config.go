// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// IngestConfig provides settings for the inbound lead endpoints.
type IngestConfig interface {
	GetIngestAPIKey() string
	GetTriageBranchID() *uuid.UUID
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API integration.
type WhatsAppConfig interface {
	GetWhatsAppToken() string
	GetWhatsAppPhoneNumberID() string
	GetWhatsAppAPIVersion() string
	GetWhatsAppBaseURL() string
	GetWhatsAppVerifyToken() string
	GetWhatsAppDefaultTenantID() uuid.UUID
	IsWhatsAppEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SMTPConfig provides settings for outgoing e-mail.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetManagerNotifyEmail() string
	IsEmailEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketWebhookArchive() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	StoreDriver             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	IngestAPIKey            string
	TriageBranchID          *uuid.UUID
	WhatsAppToken           string
	WhatsAppPhoneNumberID   string
	WhatsAppAPIVersion      string
	WhatsAppBaseURL         string
	WhatsAppVerifyToken     string
	WhatsAppDefaultTenantID uuid.UUID
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	ManagerNotifyEmail      string
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketWebhooks     string
	ShutdownTimeout         time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// IngestConfig implementation
func (c *Config) GetIngestAPIKey() string       { return c.IngestAPIKey }
func (c *Config) GetTriageBranchID() *uuid.UUID { return c.TriageBranchID }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppToken() string              { return c.WhatsAppToken }
func (c *Config) GetWhatsAppPhoneNumberID() string      { return c.WhatsAppPhoneNumberID }
func (c *Config) GetWhatsAppAPIVersion() string         { return c.WhatsAppAPIVersion }
func (c *Config) GetWhatsAppBaseURL() string            { return c.WhatsAppBaseURL }
func (c *Config) GetWhatsAppVerifyToken() string        { return c.WhatsAppVerifyToken }
func (c *Config) GetWhatsAppDefaultTenantID() uuid.UUID { return c.WhatsAppDefaultTenantID }
func (c *Config) IsWhatsAppEnabled() bool {
	return c.WhatsAppToken != "" && c.WhatsAppPhoneNumberID != ""
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string           { return c.SMTPHost }
func (c *Config) GetSMTPPort() int              { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string       { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string       { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string      { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string   { return c.EmailFromAddress }
func (c *Config) GetManagerNotifyEmail() string { return c.ManagerNotifyEmail }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFromAddress != "" && c.ManagerNotifyEmail != ""
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string             { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string            { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string            { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                 { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketWebhookArchive() string { return c.MinioBucketWebhooks }
func (c *Config) IsMinIOEnabled() bool                 { return c.MinIOEndpoint != "" }

// UsesMemoryStore reports whether the process runs without PostgreSQL.
func (c *Config) UsesMemoryStore() bool { return strings.EqualFold(c.StoreDriver, "memory") }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	triageBranchID, err := optionalUUID(getEnv("INGEST_TRIAGE_BRANCH_ID", ""))
	if err != nil {
		return nil, fmt.Errorf("INGEST_TRIAGE_BRANCH_ID: %w", err)
	}

	defaultTenantID, err := optionalUUID(getEnv("WHATSAPP_DEFAULT_TENANT_ID", ""))
	if err != nil {
		return nil, fmt.Errorf("WHATSAPP_DEFAULT_TENANT_ID: %w", err)
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		StoreDriver:           getEnv("STORE_DRIVER", "postgres"),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		IngestAPIKey:          getEnv("INGEST_API_KEY", ""),
		TriageBranchID:        triageBranchID,
		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v20.0"),
		WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "VIA CRM"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		ManagerNotifyEmail:    getEnv("MANAGER_NOTIFY_EMAIL", ""),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketWebhooks:   getEnv("MINIO_BUCKET_WEBHOOK_ARCHIVE", "webhook-archive"),
		ShutdownTimeout:       mustDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")),
	}
	if defaultTenantID != nil {
		cfg.WhatsAppDefaultTenantID = *defaultTenantID
	}

	if cfg.DatabaseURL == "" && !cfg.UsesMemoryStore() {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.IngestAPIKey == "" {
		return nil, fmt.Errorf("INGEST_API_KEY is required")
	}
	if cfg.WhatsAppVerifyToken != "" && cfg.WhatsAppDefaultTenantID == uuid.Nil {
		return nil, fmt.Errorf("WHATSAPP_DEFAULT_TENANT_ID is required when the WhatsApp webhook is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func optionalUUID(value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
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
