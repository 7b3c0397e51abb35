package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/cache"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/database"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/events"
	"github.com/zatekoja/dentalprotocols/backend/internal/api/handlers"
	"github.com/zatekoja/dentalprotocols/backend/internal/api/routes"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/openai"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/internal/safety"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
)

// cachePrefix namespaces every cache key written by the API
const cachePrefix = "dental"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logging
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)
	log.Info().
		Str("service", cfg.OTEL.ServiceName).
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", cfg.Env).
		Msg("Starting API server")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized successfully")

	// Initialize Redis client. Without Redis the API runs without the
	// status stream and the shade catalog cache.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis client")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Msg("Redis client initialized successfully")
	}

	// Initialize adapters
	evaluationAdapter := database.NewEvaluationAdapter(pgClient)
	pendingAdapter := database.NewPendingToothAdapter(pgClient)
	creditAdapter := database.NewCreditAdapter(pgClient)

	var rateLimitAdapter repositories.RateLimitRepository
	switch cfg.RateLimit.Backend {
	case "redis":
		if redisClient == nil {
			log.Fatal().Msg("RATE_LIMIT_BACKEND=redis requires a reachable Redis")
		}
		rateLimitAdapter = cache.NewRedisRateLimitAdapter(redisClient)
	default:
		rateLimitAdapter = database.NewRateLimitAdapter(pgClient)
	}
	log.Info().Str("backend", cfg.RateLimit.Backend).Msg("Rate limit store selected")

	flags := services.NewFeatureFlags()

	var shadeCatalog repositories.ShadeCatalogRepository
	if flags.ShadeNormalizationEnabled() {
		shadeCatalog = database.NewShadeCatalogAdapter(pgClient)
		if redisClient != nil {
			shadeCatalog = database.NewCachedShadeCatalogAdapter(shadeCatalog, cache.NewRedisAdapter(redisClient, cachePrefix))
		}
	}

	var eventBus providers.EventBus
	if redisClient != nil && flags.StatusStreamEnabled() {
		eventBus = events.NewRedisEventBus(redisClient)
	}

	// Initialize the protocol generator
	generator, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize OpenAI client")
	}
	log.Info().Str("model", generator.Model()).Msg("OpenAI client initialized successfully")

	// Initialize services
	guard := services.NewUsageGuard(rateLimitAdapter, creditAdapter, cfg.RateLimit, cfg.Credits)
	recommendationService := services.NewRecommendationService(evaluationAdapter, generator, safety.NewProcessor(shadeCatalog), guard)
	dispatchService := services.NewDispatchService(services.NewDispatchClients(recommendationService, evaluationAdapter), nil)
	syncService := services.NewProtocolSyncService(evaluationAdapter, eventBus)
	reconciliationService := services.NewReconciliationService(evaluationAdapter, pendingAdapter, dispatchService, syncService, eventBus)
	evaluationService := services.NewEvaluationService(evaluationAdapter, eventBus)

	// Initialize handlers
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)
	sessionHandler := handlers.NewSessionHandler(reconciliationService, syncService, evaluationService)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	// Set up router
	router := routes.NewRouter(recommendationHandler, sessionHandler, sseHandler, metrics).
		WithAllowedOrigins(cfg.Server.AllowedOrigins)
	handler := router.SetupRoutes()

	// Create HTTP server. WriteTimeout stays unset so status streams are not cut.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Server shutting down...")

	// Close the event bus first so open streams return
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
