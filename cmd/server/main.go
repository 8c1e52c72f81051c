package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/config"
	httphandler "github.com/windfall/poplingo_service/internal/handler/http"
	wshandler "github.com/windfall/poplingo_service/internal/handler/ws"
	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/internal/metrics"
	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/server"
	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Environment).Msg("Starting " + logger.ServiceName)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	mp, shutdownMetrics, err := metrics.InitProvider()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics provider")
	}
	met, err := metrics.New(mp)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create instruments")
	}

	// AI providers
	prov, err := buildProviders(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AI providers")
	}
	defer prov.Close()

	healthHandler := httphandler.NewHealthHandler()
	grpcServer := server.NewGRPCServer(cfg, log)

	// Postgres, or in-memory storage when no database is configured
	var (
		postgresClient *client.PostgresClient
		notebookRepo   repository.NotebookRepository
		userRepo       repository.UserRepository
	)
	if cfg.DatabaseURL != "" {
		postgresClient, err = client.NewPostgresClient(ctx, cfg.DatabaseURL, client.PoolOptions{
			MaxConns:        cfg.DatabaseMaxConns,
			MaxConnIdleTime: cfg.DatabaseMaxIdleTime,
			ConnectTimeout:  10 * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Postgres client")
		}
		log.Info().Msg("Postgres client initialized")
		notebookRepo = repository.NewPostgresNotebookRepository(postgresClient)
		userRepo = repository.NewPostgresUserRepository(postgresClient)
		healthHandler.WithCheck("postgres", postgresClient)
		grpcServer.WithCheck("postgres", postgresClient)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
		notebookRepo = repository.NewMemoryNotebookRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	// Redis cache (optional)
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client, caching disabled")
		} else {
			log.Info().Msg("Redis client initialized")
			healthHandler.WithCheck("redis", redisClient)
			grpcServer.WithCheck("redis", redisClient)
		}
	}

	mediaStore, closeMedia := buildMediaStore(ctx, cfg, log)
	defer closeMedia()

	// Pub/Sub notebook events (optional)
	var pubsubClient *client.PubSubClient
	if cfg.PubSubTopicID != "" && cfg.GCPProjectID != "" {
		pubsubClient, err = client.NewPubSubClient(ctx, cfg.GCPProjectID, cfg.PubSubTopicID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub client, events disabled")
		} else {
			log.Info().Str("topic", cfg.PubSubTopicID).Msg("Pub/Sub client initialized")
		}
	}

	// Initialize services
	deps := serviceDeps{notebookRepo: notebookRepo, userRepo: userRepo, media: mediaStore}
	if redisClient != nil {
		deps.cache = redisClient
	}
	if pubsubClient != nil {
		deps.events = pubsubClient
	}
	svc := buildServices(cfg, log, met, prov, deps)

	v, err := validate.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build request validator")
	}

	// Initialize handlers
	healthHandler.WithProviders(svc.ai.Providers())
	handlers := server.Handlers{
		Health:    healthHandler,
		Auth:      httphandler.NewAuthHandler(log, v, svc.auth),
		Lookup:    httphandler.NewLookupHandler(log, v, svc.dictionary, svc.notebook),
		Notebook:  httphandler.NewNotebookHandler(log, svc.notebook),
		Study:     httphandler.NewStudyHandler(log, svc.study),
		Story:     httphandler.NewStoryHandler(log, v, svc.story),
		Speech:    httphandler.NewSpeechHandler(log, v, svc.speech),
		WebSocket: wshandler.NewHandler(logger.Component(log, "ws"), svc.story),
	}

	hub := server.NewWebSocketHub(logger.Component(log, "ws"), cfg.CORSAllowedOrigins)
	healthHandler.WithClientCount(hub.ClientCount)
	go hub.Run(ctx)

	httpServer := server.NewHTTPServer(cfg, log, handlers, svc.auth, hub, met)
	go grpcServer.MonitorDependencies(ctx, 30*time.Second)

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
			cancel()
		}
	}()

	log.Info().
		Str("http_addr", cfg.HTTPAddress()).
		Str("grpc_addr", cfg.GRPCAddress()).
		Msg("Servers started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down servers...")
	healthHandler.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	grpcServer.GracefulStop()
	cancel()

	// Close clients
	if pubsubClient != nil {
		pubsubClient.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if postgresClient != nil {
		postgresClient.Close()
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics provider shutdown error")
	}

	log.Info().Msg("Server stopped")
}

// buildMediaStore returns nil when images should be served inline as data
// URLs, including when the configured backend fails to initialize.
func buildMediaStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.MediaStore, func()) {
	noop := func() {}

	switch cfg.MediaBackend {
	case config.MediaCloudflare:
		c, err := client.NewCloudflareClient(ctx,
			cfg.CloudflareAccessKeyID,
			cfg.CloudflareSecretKey,
			cfg.CloudflareR2Endpoint,
			cfg.CloudflareBucketName,
			cfg.CloudflarePublicURL,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Cloudflare client, serving images inline")
			return nil, noop
		}
		log.Info().Str("bucket", cfg.CloudflareBucketName).Msg("Cloudflare R2 media store initialized")
		return c, noop

	case config.MediaGCS:
		c, err := client.NewStorageClient(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize GCS client, serving images inline")
			return nil, noop
		}
		log.Info().Str("bucket", cfg.GCSBucketName).Msg("GCS media store initialized")
		return c, c.Close
	}

	return nil, noop
}
