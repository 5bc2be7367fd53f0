package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transaction-service/config"
	"transaction-service/internal/api"
	"transaction-service/internal/authority"
	"transaction-service/internal/broker"
	"transaction-service/internal/catalog"
	"transaction-service/internal/redisclient"
	"transaction-service/internal/service"
	"transaction-service/internal/store"
	"transaction-service/internal/util"
	"transaction-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting transaction service")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.TracingOptions{
			Endpoint:    cfg.Observ.JaegerEndpoint,
			Environment: cfg.Server.Env,
			SampleRatio: cfg.Observ.SampleRatio,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate ledger", zap.Error(err))
	}
	logger.Info("Ledger ready", zap.String("driver", cfg.Database.Driver))

	readyChecks := map[string]api.ReadyCheck{"ledger": db.Ping}

	var statsCache service.StatsCache
	var invalidator worker.StatsInvalidator
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			statsCache = redisClient
			invalidator = redisClient
			readyChecks["redis"] = redisClient.Ping
			logger.Info("Redis connected")
		}
	}

	var publisher service.EventPublisher = broker.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTransaction)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	authorityClient := authority.NewClient(
		cfg.Upstream.AuthorityURL,
		cfg.Upstream.AuthorityTimeout,
		authority.ParseMatchStrategy(cfg.Upstream.AuthorityMatchBy),
	)
	catalogClient := catalog.NewClient(
		cfg.Upstream.CatalogURL,
		cfg.Upstream.CatalogTimeout,
		cfg.Upstream.CatalogServiceToken,
	)

	transactionService := service.NewTransactionService(
		authorityClient,
		catalogClient,
		db,
		statsCache,
		publisher,
		service.Options{
			SagaCompensation: cfg.Business.SagaCompensation,
			StatsWindowDays:  cfg.Business.StatsWindowDays,
			StatsCacheTTL:    cfg.Business.StatsCacheTTL,
		},
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var reconciliationWorker *worker.ReconciliationWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTransaction, cfg.Kafka.ConsumerGroup)
		reconciliationWorker = worker.NewReconciliationWorker(consumer, db, invalidator)
		go func() {
			if err := reconciliationWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Reconciliation worker error", zap.Error(err))
			}
		}()
	}

	var sweeper *worker.SagaSweeper
	if cfg.Business.SagaCompensation {
		sweeper = worker.NewSagaSweeper(db, cfg.Business.SagaStaleAfter)
		if err := sweeper.Start(cfg.Business.SagaSweepSchedule); err != nil {
			logger.Fatal("Failed to start saga sweeper", zap.Error(err))
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(transactionService, api.Options{
		JWTSecret:          cfg.Auth.JWTSecret,
		AuthRequired:       cfg.Auth.Required,
		CommitRoles:        cfg.Auth.CommitRoles,
		AdminRoles:         cfg.Auth.AdminRoles,
		AllowOrigins:       cfg.Auth.AllowOrigins,
		RateLimitPerSecond: cfg.Business.RateLimitPerSecond,
		RateLimitBurst:     cfg.Business.RateLimitBurst,
		ReadyChecks:        readyChecks,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if reconciliationWorker != nil {
		reconciliationWorker.Stop()
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	logger.Info("Server exited")
}
