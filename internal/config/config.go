package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	XMPP       XMPPConfig
	Discord    DiscordConfig
	Generation GenerationConfig
	Quota      QuotaConfig
	Bot        BotConfig
	Lang       LangConfig
	Session    SessionConfig
	Store      StoreConfig
	Admin      AdminConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Enabled reports whether a Postgres database is configured at all.
func (c DBConfig) Enabled() bool {
	return c.Password != ""
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type XMPPConfig struct {
	Enabled         bool
	ComponentHost   string
	ComponentPort   int
	ComponentName   string
	ComponentSecret string
	AllowedDomains  []string
}

func (c XMPPConfig) ComponentAddr() string {
	return fmt.Sprintf("%s:%d", c.ComponentHost, c.ComponentPort)
}

type DiscordConfig struct {
	Token          string
	InboundEnabled bool
}

type GenerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type QuotaConfig struct {
	DailyLimit     int
	Timezone       string
	BurstPerMinute int
}

// Location resolves the configured timezone. Rollover happens at midnight in this location.
func (c QuotaConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type BotConfig struct {
	MaxMessageLength int
	TopicMaxLength   int
}

type LangConfig struct {
	Fallback string
}

type SessionConfig struct {
	TTL time.Duration
}

type StoreConfig struct {
	Driver string
	Path   string
}

type AdminConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
	RateLimit   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		XMPP: XMPPConfig{
			Enabled:         k.Bool("xmpp.enabled"),
			ComponentHost:   k.String("xmpp.component.host"),
			ComponentPort:   k.Int("xmpp.component.port"),
			ComponentName:   k.String("xmpp.component.name"),
			ComponentSecret: k.String("xmpp.component.secret"),
			AllowedDomains:  splitList(k.String("xmpp.allowed.domains")),
		},
		Discord: DiscordConfig{
			Token:          k.String("discord.token"),
			InboundEnabled: k.Bool("discord.inbound.enabled"),
		},
		Generation: GenerationConfig{
			APIKey:  k.String("generation.api.key"),
			BaseURL: k.String("generation.base.url"),
			Model:   k.String("generation.model"),
		},
		Quota: QuotaConfig{
			DailyLimit:     k.Int("quota.daily.limit"),
			Timezone:       k.String("quota.timezone"),
			BurstPerMinute: k.Int("quota.burst.per.minute"),
		},
		Bot: BotConfig{
			MaxMessageLength: k.Int("bot.max.message.length"),
			TopicMaxLength:   k.Int("bot.topic.max.length"),
		},
		Lang: LangConfig{
			Fallback: k.String("lang.fallback"),
		},
		Store: StoreConfig{
			Driver: k.String("store.driver"),
			Path:   k.String("store.path"),
		},
		Admin: AdminConfig{
			JWTSecret: k.String("admin.jwt.secret"),
			RateLimit: k.Int("admin.rate.limit"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "quill"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "quill"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.XMPP.ComponentHost == "" {
		cfg.XMPP.ComponentHost = "localhost"
	}
	if cfg.XMPP.ComponentPort == 0 {
		cfg.XMPP.ComponentPort = 5275
	}
	if cfg.XMPP.ComponentName == "" {
		cfg.XMPP.ComponentName = "quill.localhost"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.0-flash-exp"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 25
	}
	if cfg.Bot.MaxMessageLength == 0 {
		cfg.Bot.MaxMessageLength = 4096
	}
	if cfg.Bot.TopicMaxLength == 0 {
		cfg.Bot.TopicMaxLength = 500
	}
	if cfg.Lang.Fallback == "" {
		cfg.Lang.Fallback = "en"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data"
	}
	if cfg.Admin.RateLimit == 0 {
		cfg.Admin.RateLimit = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Generation.Timeout, err = durationOr(k.String("generation.timeout"), "60s")
	if err != nil {
		return nil, fmt.Errorf("parsing generation timeout: %w", err)
	}
	cfg.Session.TTL, err = durationOr(k.String("session.ttl"), "24h")
	if err != nil {
		return nil, fmt.Errorf("parsing session ttl: %w", err)
	}
	cfg.Admin.TokenExpiry, err = durationOr(k.String("admin.token.expiry"), "24h")
	if err != nil {
		return nil, fmt.Errorf("parsing admin token expiry: %w", err)
	}

	return cfg, nil
}

func durationOr(s, def string) (time.Duration, error) {
	if s == "" {
		s = def
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
