package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/quill/internal/api"
	"github.com/aiox-platform/quill/internal/auth"
	"github.com/aiox-platform/quill/internal/broadcast"
	"github.com/aiox-platform/quill/internal/config"
	"github.com/aiox-platform/quill/internal/database"
	"github.com/aiox-platform/quill/internal/discord"
	"github.com/aiox-platform/quill/internal/generation"
	"github.com/aiox-platform/quill/internal/governance"
	"github.com/aiox-platform/quill/internal/governance/audit"
	"github.com/aiox-platform/quill/internal/governance/quota"
	"github.com/aiox-platform/quill/internal/kv"
	"github.com/aiox-platform/quill/internal/language"
	mw "github.com/aiox-platform/quill/internal/middleware"
	inats "github.com/aiox-platform/quill/internal/nats"
	"github.com/aiox-platform/quill/internal/orchestrator"
	"github.com/aiox-platform/quill/internal/pipeline"
	"github.com/aiox-platform/quill/internal/publish"
	iredis "github.com/aiox-platform/quill/internal/redis"
	"github.com/aiox-platform/quill/internal/server"
	"github.com/aiox-platform/quill/internal/session"
	"github.com/aiox-platform/quill/internal/xmpp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("quill stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()

	// PostgreSQL, optional
	var pool *pgxpool.Pool
	if cfg.DB.Enabled() {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		pool, err = database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
	}

	// Durable key-value state
	store, err := kv.Open(ctx, cfg.Store, kv.Backends{Redis: redisClient, Postgres: pool})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())

	// Quota, sessions, language
	loc, err := cfg.Quota.Location()
	if err != nil {
		return fmt.Errorf("loading quota timezone: %w", err)
	}
	guard := quota.NewGuard(quota.NewUsageStore(store), cfg.Quota.DailyLimit, loc)
	burst := quota.NewBurstLimiter(redisClient, cfg.Quota.BurstPerMinute)
	sessions := session.NewManager(session.NewRedisStore(redisClient, cfg.Session.TTL))
	prefs := language.NewPreferences(store, cfg.Lang.Fallback)
	catalog, err := language.LoadCatalog()
	if err != nil {
		return fmt.Errorf("loading message catalog: %w", err)
	}

	// Generation
	prompts, err := generation.LoadPrompts()
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	gen, err := generation.NewOpenAI(cfg.Generation, prompts)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	// Discord: broadcast destination, and optionally a chat transport
	var (
		dg          *discordgo.Session
		broadcaster broadcast.Broadcaster = broadcast.Unavailable{}
	)
	if cfg.Discord.Token != "" {
		dg, err = discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("creating discord session: %w", err)
		}
		broadcaster = broadcast.NewDiscord(dg)
	}

	pipe := pipeline.New(sessions, guard, gen, pipeline.Limits{
		MaxMessageLength: cfg.Bot.MaxMessageLength,
		TopicMaxLength:   cfg.Bot.TopicMaxLength,
	})
	coordinator := publish.NewCoordinator(sessions, broadcaster)

	orch := orchestrator.NewOrchestrator(orchestrator.Deps{
		Publisher:        publisher,
		ConsumerMgr:      consumerMgr,
		Validator:        orchestrator.NewValidator(cfg.XMPP.AllowedDomains),
		Sessions:         sessions,
		Pipeline:         pipe,
		Coordinator:      coordinator,
		Guard:            guard,
		Burst:            burst,
		Preferences:      prefs,
		Catalog:          catalog,
		MaxMessageLength: cfg.Bot.MaxMessageLength,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Start(gctx) })

	checks := readinessChecks(natsClient, store, pool)

	if cfg.XMPP.Enabled {
		handler := xmpp.NewHandler(publisher, cfg.XMPP.ComponentName)
		comp, err := xmpp.NewComponent(cfg.XMPP, handler)
		if err != nil {
			return fmt.Errorf("creating xmpp component: %w", err)
		}
		checks = append(checks, api.ReadinessCheck{Name: "xmpp", Check: comp.Check})
		relay := xmpp.NewOutboundRelay(handler, comp.Sender(), consumerMgr)
		g.Go(func() error { return comp.Start(gctx) })
		g.Go(func() error { return relay.Start(gctx) })
	}

	if cfg.Discord.InboundEnabled {
		gateway := discord.NewGateway(dg, publisher)
		relay := discord.NewOutboundRelay(dg, consumerMgr)
		g.Go(func() error { return gateway.Start(gctx) })
		g.Go(func() error { return relay.Start(gctx) })
	}

	// Audit trail and admin API
	var auditLogs governance.AuditLister
	if pool != nil {
		auditRepo := audit.NewRepository(pool)
		auditLogs = auditRepo
		consumer := audit.NewConsumer(auditRepo, consumerMgr)
		g.Go(func() error { return consumer.Start(gctx) })
	}

	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AdminRateLimiter:   mw.NewRateLimiter(redisClient, "ratelimit:admin:", cfg.Admin.RateLimit, time.Minute).Middleware,
		Checks:             checks,
	}, adminHandlers(cfg, guard, sessions, prefs, auditLogs))

	srv := server.New(cfg.Server, router)
	g.Go(func() error { return srv.Start(gctx) })

	slog.Info("quill started",
		"store", cfg.Store.Driver,
		"xmpp", cfg.XMPP.Enabled,
		"discord_inbound", cfg.Discord.InboundEnabled,
		"daily_limit", cfg.Quota.DailyLimit,
	)
	return g.Wait()
}

func adminHandlers(cfg *config.Config, guard *quota.Guard, sessions *session.Manager, prefs *language.Preferences, auditLogs governance.AuditLister) api.HandlerSet {
	if cfg.Admin.JWTSecret == "" {
		return api.HandlerSet{}
	}
	h := governance.NewHandler(guard, sessions, prefs, auditLogs)
	return api.HandlerSet{
		GetStats:       h.GetStats,
		GetUsage:       h.GetUsage,
		GetSession:     h.GetSession,
		ResetSession:   h.ResetSession,
		SetLanguage:    h.SetLanguage,
		ListAuditLogs:  h.ListAuditLogs,
		AuthMiddleware: auth.Middleware(auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiry)),
	}
}

func readinessChecks(nc *inats.Client, store kv.Store, pool *pgxpool.Pool) []api.ReadinessCheck {
	checks := []api.ReadinessCheck{
		{Name: "nats", Check: func(context.Context) error {
			if !nc.Healthy() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}},
		{Name: "store", Check: store.Ping},
	}
	if pool != nil {
		checks = append(checks, api.ReadinessCheck{Name: "database", Check: pool.Ping})
	}
	return checks
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
