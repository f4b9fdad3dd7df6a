// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"impactlens/internal/adapter/cache"
	"impactlens/internal/adapter/inference"
	"impactlens/internal/adapter/source"
	"impactlens/internal/adapter/storage"
	"impactlens/internal/adapter/transcription"
	"impactlens/internal/config"
	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
	"impactlens/internal/server"
	"impactlens/internal/service/emotion"
	"impactlens/internal/service/fusion"
	"impactlens/internal/service/graph"
	"impactlens/internal/service/pipeline"
	"impactlens/internal/service/scoring"
	"impactlens/internal/service/synthesis"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := initLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	natsConn, err := initNATS(cfg.NATS, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize storage adapters
	itemStore := storage.NewItemStore(db)
	runStore := storage.NewRunStore(db)
	artifactStore := storage.NewArtifactStore(db)
	synthesisStore := storage.NewSynthesisStore(db)

	// Initialize source adapters
	sources := []content.SourceAdapter{
		source.NewYouTubeAdapter(cfg.Sources.YouTubeAPIKey, nil, logger),
		source.NewNewsAPIAdapter(cfg.Sources.NewsAPIKey, nil, logger),
		source.NewGuardianAdapter(cfg.Sources.GuardianAPIKey, nil, logger),
	}
	transcriber := transcription.NewClient(cfg.Transcription.BaseURL, cfg.Transcription.Timeout, logger)

	// Initialize sentiment models
	models := []analysis.SentimentModelAdapter{
		inference.NewLexiconModel(),
		inference.NewGenerativeModel(cfg.Models.AnthropicAPIKey, cfg.Models.AnthropicModel),
	}

	// Initialize analysis engines
	fusionEngine := fusion.NewEngine(fusion.Config{
		DisagreementMargin: cfg.Fusion.DisagreementMargin,
	})
	scoringEngine, err := scoring.NewEngine(scoring.Config{
		Weights: scoring.Weights{
			Reach:      cfg.Scoring.ReachWeight,
			Engagement: cfg.Scoring.EngagementWeight,
			Sentiment:  cfg.Scoring.SentimentWeight,
			Quality:    cfg.Scoring.QualityWeight,
			Recency:    cfg.Scoring.RecencyWeight,
		},
		RecencyFloor: cfg.Scoring.RecencyFloor,
	})
	if err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
	}

	synthesizer := inference.NewNarrativeSynthesizer(cfg.Models.AnthropicAPIKey, cfg.Models.AnthropicModel)
	synthesisCache := synthesis.NewCache(synthesisStore, itemStore, synthesizer, logger)

	discoveryCache := cache.NewDiscoveryCache(redisClient, cfg.Redis.DiscoveryTTL, logger)
	broadcaster := pipeline.NewBroadcaster(natsConn, logger)

	// Initialize pipeline orchestrator
	orchestrator := pipeline.NewOrchestrator(
		sources,
		transcriber,
		models,
		fusionEngine,
		scoringEngine,
		emotion.NewAggregator(),
		graph.NewBuilder(graph.Config{}),
		synthesisCache,
		itemStore,
		runStore,
		artifactStore,
		discoveryCache,
		broadcaster,
		logger,
		pipeline.Config{
			ItemWorkers:       cfg.Pipeline.ItemWorkers,
			SourceConcurrency: cfg.Sources.Concurrency,
			ModelConcurrency:  cfg.Models.Concurrency,
			SourceLimit:       cfg.Sources.ItemLimit,
			SourceRetries:     cfg.Sources.Retries,
			SourceBackoff:     cfg.Sources.RetryBackoff,
			SourceTimeout:     cfg.Sources.FetchTimeout,
			TranscribeTimeout: cfg.Transcription.Timeout,
			ModelTimeout:      cfg.Models.Timeout,
			SynthesisTimeout:  cfg.Synthesis.Timeout,
			ReplayRetention:   cfg.Pipeline.ReplayRetention,
		},
	)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, server.Deps{
		Runs:      orchestrator,
		Items:     itemStore,
		Digests:   itemStore,
		RunLookup: runStore,
		Artifacts: artifactStore,
		Narrative: synthesisCache,
		Progress:  broadcaster,
		Logger:    logger,
	})

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logger.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := orchestrator.Stop(shutdownCtx); err != nil {
		logger.Warn("Orchestrator shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// Initialize structured logging
func initLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
