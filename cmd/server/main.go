package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arena-leaderboard/internal/auth"
	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/handler"
	"github.com/arena-leaderboard/internal/kafka"
	"github.com/arena-leaderboard/internal/leaderboard"
	"github.com/arena-leaderboard/internal/ledger"
	"github.com/arena-leaderboard/internal/postgres"
	"github.com/arena-leaderboard/internal/service"
	"github.com/arena-leaderboard/internal/session"
	"github.com/arena-leaderboard/internal/store"
	"github.com/arena-leaderboard/internal/team"
	"github.com/arena-leaderboard/internal/websocket"
	"github.com/arena-leaderboard/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var st store.Store
	switch cfg.Storage.Driver {
	case "memory":
		logger.Info("using in-memory storage")
		st = store.NewMemory()
	default:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		st = repo
	}

	// Initialize the session gateway. The memory driver gets in-memory
	// sessions so a development server needs no Redis; everything else
	// keeps sessions in Redis so restarts and replicas share them.
	var sessions session.Gateway
	var reaper worker.Reaper
	if cfg.Storage.Driver == "memory" {
		memSessions := session.NewMemoryGateway(cfg.Session.TTL)
		sessions = memSessions
		reaper = memSessions
	} else {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisSessions, err := session.NewRedisGateway(&cfg.Redis, cfg.Session.TTL, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisSessions.Close()
		logger.Info("connected to Redis")
		sessions = redisSessions
	}

	// Initialize the leaderboard engine and hydrate it from storage
	ranker, err := leaderboard.New(cfg.Leaderboard.Strategy, st, logger)
	if err != nil {
		logger.Error("failed to create leaderboard engine", "error", err)
		os.Exit(1)
	}
	if err := ranker.Reload(ctx); err != nil {
		logger.Error("failed to load leaderboard from storage", "error", err)
		os.Exit(1)
	}
	logger.Info("leaderboard engine ready", "strategy", cfg.Leaderboard.Strategy)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	arenaService := service.NewArena(
		st,
		sessions,
		team.NewRegistry(st, logger),
		ledger.New(st, cfg.Leaderboard.RetryAttempts, cfg.Leaderboard.RetryDelay, logger),
		ranker,
		auth.NewBcryptHasher(0),
		&cfg.Leaderboard,
		logger,
	)

	// Set the WebSocket hub on the service for broadcasting
	arenaService.SetHub(wsHub)

	// Initialize reconcile worker
	reconcileWorker := worker.NewReconcileWorker(ranker, reaper, &cfg.Sync, logger)
	if !cfg.Sync.Disabled {
		if err := reconcileWorker.Start(ctx); err != nil {
			logger.Error("failed to start reconcile worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, arenaService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(arenaService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop reconcile worker
	if !cfg.Sync.Disabled {
		if err := reconcileWorker.Stop(); err != nil {
			logger.Error("failed to stop reconcile worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
