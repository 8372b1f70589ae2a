package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	appsync "github.com/turtacn/possync/internal/application/sync"
	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/infrastructure/audit"
	"github.com/turtacn/possync/internal/infrastructure/graph"
	"github.com/turtacn/possync/internal/infrastructure/graphauth"
	"github.com/turtacn/possync/internal/infrastructure/monitoring"
	"github.com/turtacn/possync/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/possync/internal/infrastructure/search"
	"github.com/turtacn/possync/internal/infrastructure/secrets"
	httpiface "github.com/turtacn/possync/internal/interfaces/http"
	"github.com/turtacn/possync/internal/interfaces/http/handlers"
	"github.com/turtacn/possync/pkg/logger"
)

func main() {
	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	ctx := context.Background()

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracing", err)
	}
	defer tracing.Shutdown(ctx)

	// Database
	store, err := postgres.NewStore(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to connect to database", err)
	}
	defer store.Close()

	// Vault secret provider
	vaultClient, err := secrets.NewVaultClient(&cfg.Vault)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create vault client", err)
	}
	secretProvider := secrets.NewVaultProvider(cfg.Vault, vaultClient, appLogger)

	// Optional redis-backed token cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// External API access
	tokens := graphauth.NewClientCredentialProvider(cfg.Graph, secretProvider, redisClient, appLogger)
	graphClient := graph.NewClient(cfg.Graph, appLogger)

	// Search index
	indexer, err := search.NewElasticIndexer(cfg.Search, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create search indexer", err)
	}

	// Optional event publishing and run bookkeeping
	var events audit.EventProducer
	if cfg.Kafka.Enabled {
		producer := audit.NewKafkaProducer(cfg.Kafka, appLogger)
		defer producer.Close()
		events = producer
	}
	recorder, err := audit.NewGormRunRecorder(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create run recorder", err)
	}

	metrics := monitoring.NewMetrics()

	// Application services
	stores := appsync.PostgresOpener{Store: store}
	scoreSync := appsync.NewScoreSyncService(graphClient, tokens, stores, cfg.Sync.ScoreDays, appLogger)
	complianceSync := appsync.NewComplianceSyncService(graphClient, tokens, stores, appLogger)
	orchestrator := appsync.NewOrchestrator(stores, scoreSync, complianceSync, indexer, events, recorder, metrics, appLogger)

	// HTTP surface
	healthHandler := handlers.NewHealthHandler(store, appLogger)
	syncHandler := handlers.NewSyncHandler(orchestrator, appLogger)
	postureHandler := handlers.NewPostureHandler(stores, appLogger)
	router := httpiface.NewRouter(cfg, appLogger, healthHandler, syncHandler, postureHandler)

	// Built-in schedule; the primary trigger remains the HTTP endpoint.
	stopSchedule := make(chan struct{})
	if cfg.Sync.ScheduleEnabled {
		go runSchedule(ctx, cfg.Sync.ScheduleEvery, syncHandler, appLogger, stopSchedule)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		close(stopSchedule)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := router.Stop(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "Server forced to shutdown", err)
		}
	}()

	if err := router.Start(); err != nil {
		appLogger.Fatal(ctx, "HTTP server failed", err)
	}
}

func runSchedule(ctx context.Context, every time.Duration, h *handlers.SyncHandler, log logger.Logger, stop <-chan struct{}) {
	if every <= 0 {
		every = 24 * time.Hour
	}
	log.Info(ctx, "sync schedule enabled", logger.Duration("every", every))

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.RunNow(ctx)
		case <-stop:
			return
		}
	}
}
