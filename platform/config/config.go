// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
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

// CronConfig provides the shared secret external cron triggers must present.
type CronConfig interface {
	GetCronSecret() string
}

// SchedulerConfig provides settings for the asynq-backed internal ticker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAutoResumeCron() string
	GetSendCron() string
}

// WhatsAppConfig provides settings for the messaging gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetPhoneDefaultRegion() string
}

// NurturingConfig provides tuning for the nurturing sweeps.
type NurturingConfig interface {
	GetAutoResumeIdle() time.Duration
	GetSweepBatchSize() int
	GetDispatchDelay() time.Duration
}

// TrackingConfig provides settings for tracked links.
type TrackingConfig interface {
	GetTrackingBaseURL() string
	GetTrackingLandingURL() string
}

// FollowUpConfig provides settings for follow-up planning.
type FollowUpConfig interface {
	GetFollowUpHour() int
	GetFollowUpLocation() *time.Location
}

// MinIOConfig provides settings for MinIO S3-compatible storage holding
// nurturing template documents.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIORegion() string
	GetMinIOPresignTTL() time.Duration
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	CronSecret       string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	AutoResumeCron   string
	SendCron         string
	WhatsAppURL      string
	WhatsAppKey      string
	WhatsAppDeviceID string
	PhoneRegion      string
	AutoResumeIdle   time.Duration
	SweepBatchSize   int
	DispatchDelay    time.Duration
	TrackingBaseURL  string
	LandingURL       string
	FollowUpHour     int
	FollowUpLocation *time.Location
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOUseSSL      bool
	MinIORegion      string
	MinIOPresignTTL  time.Duration
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

// CronConfig implementation
func (c *Config) GetCronSecret() string { return c.CronSecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetAutoResumeCron() string  { return c.AutoResumeCron }
func (c *Config) GetSendCron() string        { return c.SendCron }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string        { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string        { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string   { return c.WhatsAppDeviceID }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneRegion }

// NurturingConfig implementation
func (c *Config) GetAutoResumeIdle() time.Duration { return c.AutoResumeIdle }
func (c *Config) GetSweepBatchSize() int           { return c.SweepBatchSize }
func (c *Config) GetDispatchDelay() time.Duration  { return c.DispatchDelay }

// TrackingConfig implementation
func (c *Config) GetTrackingBaseURL() string    { return c.TrackingBaseURL }
func (c *Config) GetTrackingLandingURL() string { return c.LandingURL }

// FollowUpConfig implementation
func (c *Config) GetFollowUpHour() int                { return c.FollowUpHour }
func (c *Config) GetFollowUpLocation() *time.Location { return c.FollowUpLocation }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinIORegion() string            { return c.MinIORegion }
func (c *Config) GetMinIOPresignTTL() time.Duration { return c.MinIOPresignTTL }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	location, err := time.LoadLocation(getEnv("FOLLOW_UP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("FOLLOW_UP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		CronSecret:       getEnv("CRON_SECRET", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "nurturing"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
		AutoResumeCron:   getEnv("AUTO_RESUME_CRON", "*/30 * * * *"),
		SendCron:         getEnv("SEND_CRON", "*/5 * * * *"),
		WhatsAppURL:      getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:      getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID: getEnv("WHATSAPP_DEVICE_ID", ""),
		PhoneRegion:      getEnv("PHONE_DEFAULT_REGION", "NL"),
		AutoResumeIdle:   mustDuration(getEnv("AUTO_RESUME_IDLE", "48h")),
		SweepBatchSize:   mustInt(getEnv("SWEEP_BATCH_SIZE", "50")),
		DispatchDelay:    mustDuration(getEnv("DISPATCH_DELAY", "1500ms")),
		TrackingBaseURL:  strings.TrimRight(getEnv("TRACKING_BASE_URL", "http://localhost:8080/l"), "/"),
		LandingURL:       getEnv("TRACKING_LANDING_URL", "https://example.com"),
		FollowUpHour:     mustInt(getEnv("FOLLOW_UP_HOUR", "9")),
		FollowUpLocation: location,
		MinIOEndpoint:    getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:      strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIORegion:      getEnv("MINIO_REGION", "us-east-1"),
		MinIOPresignTTL:  mustDuration(getEnv("MINIO_PRESIGN_TTL", "24h")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.AutoResumeIdle <= 0 {
		return fmt.Errorf("AUTO_RESUME_IDLE must be a positive duration")
	}
	if c.SweepBatchSize < 1 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be at least 1")
	}
	if c.FollowUpHour < 0 || c.FollowUpHour > 23 {
		return fmt.Errorf("FOLLOW_UP_HOUR must be between 0 and 23")
	}
	for name, spec := range map[string]string{"AUTO_RESUME_CRON": c.AutoResumeCron, "SEND_CRON": c.SendCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
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
