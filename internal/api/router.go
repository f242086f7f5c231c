package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/aiox-platform/quill/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	GetStats      http.HandlerFunc
	GetUsage      http.HandlerFunc
	GetSession    http.HandlerFunc
	ResetSession  http.HandlerFunc
	SetLanguage   http.HandlerFunc
	ListAuditLogs http.HandlerFunc

	// AuthMiddleware guards every /api/v1 route. Without it the admin API
	// is not mounted.
	AuthMiddleware func(http.Handler) http.Handler
}

// ReadinessCheck is one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AdminRateLimiter   func(http.Handler) http.Handler
	Checks             []ReadinessCheck
}

const readinessTimeout = 3 * time.Second

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, c := range cfg.Checks {
			if err := c.Check(ctx); err != nil {
				health[c.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[c.Name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	if h.AuthMiddleware == nil {
		return r
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AdminRateLimiter != nil {
			r.Use(cfg.AdminRateLimiter)
		}
		r.Use(h.AuthMiddleware)

		r.Get("/stats", h.GetStats)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/usage", h.GetUsage)
			r.Get("/session", h.GetSession)
			r.Delete("/session", h.ResetSession)
			r.Put("/language", h.SetLanguage)
			r.Get("/audit", h.ListAuditLogs)
		})
	})

	return r
}
