// Package main provides the entrypoint for the StationPulse worker.
//
// The worker polls every station on a fixed interval, classifies each one as
// online or offline, maintains downtime records, and compacts the raw check
// rows into hourly samples. It can also receive jobs over Pub/Sub.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/database"
	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/provider/skymesh"
	"github.com/stationpulse/stationpulse/internal/provider/weatherlink"
	"github.com/stationpulse/stationpulse/internal/sample"
	"github.com/stationpulse/stationpulse/internal/telemetry"
	"github.com/stationpulse/stationpulse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "stationpulse-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting StationPulse worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize repositories
	stationRepo := monitor.NewPostgresStationRepository(pool)
	logRepo := monitor.NewPostgresStatusLogRepository(pool)
	downtimeRepo := monitor.NewPostgresDowntimeRepository(pool)

	provider, providerName := buildProvider(log)
	log.Info().Str("provider", providerName).Msg("station provider initialized")

	syncService := monitor.NewSyncService(monitor.SyncServiceConfig{
		Provider:   provider,
		Classifier: buildClassifier(providerName),
		Stations:   stationRepo,
		Logs:       logRepo,
		Downtime:   monitor.NewDowntimeTracker(downtimeRepo, log),
		// Batched mode keeps a full fleet pass inside the sync interval.
		Config: monitor.SyncConfig{Mode: monitor.SyncBatched},
		Logger: log,
	})

	sampleService := sample.NewService(sample.ServiceConfig{
		Logs:    sample.NewPostgresLogSource(pool),
		Samples: sample.NewPostgresRepository(pool),
		Logger:  log,
	})

	syncJob := worker.NewSyncJob(worker.SyncJobConfig{
		SyncService:   syncService,
		SampleService: sampleService,
		Logger:        log,
	})

	// Health endpoint for the container platform.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub job handler, when configured.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			SyncJob:          syncJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Scheduled sync loop. Polling cadence is deliberately coarse; detection
	// latency is bounded by it.
	interval := 30 * time.Minute
	if raw := os.Getenv("SYNC_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			interval = parsed
		} else {
			log.Warn().Str("sync_interval", raw).Msg("invalid sync interval, using default")
		}
	}

	go func() {
		log.Info().Dur("interval", interval).Msg("sync loop started")

		// One pass at startup so a fresh deployment has data immediately.
		if _, err := syncJob.Run(ctx); err != nil {
			log.Error().Err(err).Msg("initial sync failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync loop stopped")
				return
			case <-ticker.C:
				if _, err := syncJob.Run(ctx); err != nil {
					log.Error().Err(err).Msg("scheduled sync failed")
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
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
