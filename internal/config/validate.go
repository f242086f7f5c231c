package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var storeDrivers = map[string]bool{
	"memory":   true,
	"file":     true,
	"sqlite":   true,
	"redis":    true,
	"postgres": true,
}

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Generation backend
	if c.Generation.APIKey == "" {
		errs = append(errs, "GENERATION_API_KEY is required")
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, "GENERATION_TIMEOUT must be positive")
	}

	// Quota and message limits
	if c.Quota.DailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_DAILY_LIMIT must be at least 1, got %d", c.Quota.DailyLimit))
	}
	if c.Quota.BurstPerMinute < 0 {
		errs = append(errs, "QUOTA_BURST_PER_MINUTE must not be negative")
	}
	if _, err := c.Quota.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("QUOTA_TIMEZONE is not a known location: %q", c.Quota.Timezone))
	}
	if c.Bot.MaxMessageLength < 1 {
		errs = append(errs, "BOT_MAX_MESSAGE_LENGTH must be positive")
	}
	if c.Bot.TopicMaxLength < 1 {
		errs = append(errs, "BOT_TOPIC_MAX_LENGTH must be positive")
	}

	// Storage
	if !storeDrivers[c.Store.Driver] {
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be one of memory, file, sqlite, redis, postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && !c.DB.Enabled() {
		errs = append(errs, "DB_PASSWORD is required when STORE_DRIVER=postgres")
	}

	// Transports
	if !c.XMPP.Enabled && !c.Discord.InboundEnabled {
		errs = append(errs, "at least one of XMPP_ENABLED or DISCORD_INBOUND_ENABLED must be set")
	}
	if c.XMPP.Enabled && c.XMPP.ComponentSecret == "" {
		errs = append(errs, "XMPP_COMPONENT_SECRET is required when XMPP_ENABLED=true")
	}
	if c.Discord.InboundEnabled && c.Discord.Token == "" {
		errs = append(errs, "DISCORD_TOKEN is required when DISCORD_INBOUND_ENABLED=true")
	}

	// Admin API secret
	if c.Admin.JWTSecret != "" && len(c.Admin.JWTSecret) < 32 {
		errs = append(errs, "ADMIN_JWT_SECRET must be at least 32 characters")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Warn only
	if c.Discord.Token == "" {
		slog.Warn("DISCORD_TOKEN is empty, publishing to destinations is disabled")
	}
	if c.Admin.JWTSecret == "" {
		slog.Warn("ADMIN_JWT_SECRET is empty, admin API routes are disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
