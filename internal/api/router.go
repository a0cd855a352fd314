// Package api provides the HTTP API for StationPulse.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/api/handler"
	"github.com/stationpulse/stationpulse/internal/api/middleware"
	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	ProviderName   string
	AllowedOrigins []string
	DB             handler.Pinger
	MonitorService *monitor.Service
	SampleService  *sample.Service
	SyncService    *monitor.SyncService
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stationpulse-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))
	r.Use(middleware.ContentTypeJSON) // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ProviderName, cfg.DB)
	stationHandler := handler.NewStationHandler(cfg.MonitorService, cfg.SampleService)
	adminHandler := handler.NewAdminHandler(cfg.SyncService, cfg.SampleService)

	// Rate limit middleware per endpoint category
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 6 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)  // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Dashboard endpoints - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/stations", stationHandler.ListStations)
			r.Get("/stations/{stationId}", stationHandler.GetStation)
			r.Get("/stations/{stationId}/history", stationHandler.GetHistory)
			r.Get("/stats", stationHandler.GetStats)
			r.Get("/alerts", stationHandler.GetAlerts)
		})

		// Operational triggers - these fan out to the upstream provider, so
		// they get the strict limit.
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/sync", adminHandler.TriggerSync)
			r.Post("/samples/backfill", adminHandler.TriggerBackfill)
		})
	})

	return r
}
