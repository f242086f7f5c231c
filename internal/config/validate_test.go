package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "quill",
			Password: "secret", Name: "quill", SSLMode: "disable", MaxConns: 10,
		},
		Redis:      RedisConfig{Host: "localhost", Port: 6379},
		XMPP:       XMPPConfig{Enabled: true, ComponentSecret: "s3cret"},
		Discord:    DiscordConfig{Token: "discord-token"},
		Generation: GenerationConfig{APIKey: "key", Model: "gemini-2.0-flash-exp", Timeout: time.Minute},
		Quota:      QuotaConfig{DailyLimit: 25, Timezone: "UTC"},
		Bot:        BotConfig{MaxMessageLength: 4096, TopicMaxLength: 500},
		Store:      StoreConfig{Driver: "file", Path: "data"},
		Admin:      AdminConfig{JWTSecret: "admin-secret-that-is-at-least-32-chars!"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_GenerationKeyRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GENERATION_API_KEY") {
		t.Fatalf("expected GENERATION_API_KEY error, got: %v", err)
	}
}

func TestValidate_DailyLimitPositive(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.DailyLimit = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "QUOTA_DAILY_LIMIT") {
		t.Fatalf("expected QUOTA_DAILY_LIMIT error, got: %v", err)
	}
}

func TestValidate_UnknownTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.Timezone = "Mars/Olympus_Mons"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "QUOTA_TIMEZONE") {
		t.Fatalf("expected QUOTA_TIMEZONE error, got: %v", err)
	}
}

func TestValidate_UnknownStoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mongo"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "STORE_DRIVER") {
		t.Fatalf("expected STORE_DRIVER error, got: %v", err)
	}
}

func TestValidate_PostgresStoreNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_NoTransport(t *testing.T) {
	cfg := validConfig()
	cfg.XMPP.Enabled = false
	cfg.Discord.InboundEnabled = false
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "XMPP_ENABLED") {
		t.Fatalf("expected transport error, got: %v", err)
	}
}

func TestValidate_DiscordInboundNeedsToken(t *testing.T) {
	cfg := validConfig()
	cfg.Discord = DiscordConfig{InboundEnabled: true}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("expected DISCORD_TOKEN error, got: %v", err)
	}
}

func TestValidate_AdminSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.JWTSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ADMIN_JWT_SECRET") {
		t.Fatalf("expected ADMIN_JWT_SECRET error, got: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		DB:     DBConfig{Port: 5432},
		Redis:  RedisConfig{Port: 6379},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"GENERATION_API_KEY", "QUOTA_DAILY_LIMIT", "BOT_MAX_MESSAGE_LENGTH", "STORE_DRIVER", "SERVER_PORT"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a.example , ,b.example")
	if len(got) != 2 || got[0] != "a.example" || got[1] != "b.example" {
		t.Fatalf("unexpected split: %#v", got)
	}
	if splitList("") != nil {
		t.Fatal("expected nil for empty input")
	}
}
