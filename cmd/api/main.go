// Package main provides the entrypoint for the StationPulse API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/api"
	"github.com/stationpulse/stationpulse/internal/api/middleware"
	"github.com/stationpulse/stationpulse/internal/database"
	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/provider/skymesh"
	"github.com/stationpulse/stationpulse/internal/provider/weatherlink"
	"github.com/stationpulse/stationpulse/internal/sample"
	"github.com/stationpulse/stationpulse/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "stationpulse-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting StationPulse API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Initialize repositories
	stationRepo := monitor.NewPostgresStationRepository(pool)
	logRepo := monitor.NewPostgresStatusLogRepository(pool)
	downtimeRepo := monitor.NewPostgresDowntimeRepository(pool)
	sampleRepo := sample.NewPostgresRepository(pool)
	logSource := sample.NewPostgresLogSource(pool)

	// Initialize the upstream provider
	provider, providerName := buildProvider(log)
	log.Info().Str("provider", providerName).Msg("station provider initialized")

	// Initialize services
	monitorService := monitor.NewService(monitor.ServiceConfig{
		Stations: stationRepo,
		Logs:     logRepo,
		Downtime: downtimeRepo,
		Logger:   log,
	})

	sampleService := sample.NewService(sample.ServiceConfig{
		Logs:    logSource,
		Samples: sampleRepo,
		Logger:  log,
	})

	syncService := monitor.NewSyncService(monitor.SyncServiceConfig{
		Provider:   provider,
		Classifier: buildClassifier(providerName),
		Stations:   stationRepo,
		Logs:       logRepo,
		Downtime:   monitor.NewDowntimeTracker(downtimeRepo, log),
		Config:     syncConfigFromEnv(),
		Logger:     log,
	})
	log.Info().Msg("monitoring services initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		ProviderName:   providerName,
		AllowedOrigins: allowedOrigins(),
		DB:             pool,
		MonitorService: monitorService,
		SampleService:  sampleService,
		SyncService:    syncService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// buildProvider selects the upstream station provider from the environment.
func buildProvider(log zerolog.Logger) (monitor.Provider, string) {
	name := os.Getenv("STATION_PROVIDER")
	if name == "" {
		name = weatherlink.ProviderName
	}

	switch name {
	case skymesh.ProviderName:
		tokens := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
			BaseURL:     os.Getenv("SKYMESH_BASE_URL"),
			Username:    os.Getenv("SKYMESH_USERNAME"),
			Password:    os.Getenv("SKYMESH_PASSWORD"),
			StaticToken: os.Getenv("SKYMESH_TOKEN"),
			Logger:      log,
		})
		client := skymesh.NewClient(skymesh.ClientConfig{
			BaseURL: os.Getenv("SKYMESH_BASE_URL"),
			Tokens:  tokens,
			Logger:  log,
		})
		return client, name
	default:
		client := weatherlink.NewClient(weatherlink.ClientConfig{
			APIKey:           os.Getenv("WEATHERLINK_API_KEY"),
			APISecret:        os.Getenv("WEATHERLINK_API_SECRET"),
			ConvertToCelsius: os.Getenv("WEATHERLINK_CONVERT_CELSIUS") != "false",
			Logger:           log,
		})
		return client, weatherlink.ProviderName
	}
}

// buildClassifier picks the classification strategy. WeatherLink has no
// authoritative status flag, so it defaults to the stuck-reading heuristic;
// SkyMesh defaults to its status vocabulary.
func buildClassifier(providerName string) monitor.Classifier {
	strategy := monitor.ClassifierStrategy(os.Getenv("CLASSIFIER_STRATEGY"))
	if strategy == "" && providerName == skymesh.ProviderName {
		strategy = monitor.StrategyProviderStatus
	}
	return monitor.NewClassifier(strategy, os.Getenv("CLASSIFIER_ACTIVE_VALUE"))
}

func syncConfigFromEnv() monitor.SyncConfig {
	cfg := monitor.SyncConfig{}
	if os.Getenv("SYNC_MODE") == string(monitor.SyncBatched) {
		cfg.Mode = monitor.SyncBatched
	}
	return cfg
}

func allowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
