package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tasknotes/internal/config"
	"tasknotes/internal/dates"
	"tasknotes/internal/handler"
	"tasknotes/internal/httpserver"
	"tasknotes/internal/repository"
	"tasknotes/internal/service/auth"
	"tasknotes/internal/service/task"
	"tasknotes/internal/storage"
	"tasknotes/pkg/circuitbreaker"
	"tasknotes/pkg/db"
	"tasknotes/pkg/logger"
	"tasknotes/pkg/mq"
	"tasknotes/pkg/otel"
	"tasknotes/pkg/redis"
	"tasknotes/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Development)
	defer log.Sync()

	log.Info("Starting tasknotes-api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Bool("mq_enabled", cfg.MQ.URL != ""),
	)

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName: cfg.Otel.ServiceName,
		Endpoint:    cfg.Otel.Endpoint,
		Enabled:     cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = repository.EnsureSchema(schemaCtx, dbConn, log)
	schemaCancel()
	if err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Redis
	rdb, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	// MQ publisher (optional)
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
	}

	// Storage
	store, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		log.Fatal("Failed to init attachment store", zap.Error(err))
	}
	taskRepo := repository.NewTaskRepository(dbConn, log)
	janitor := storage.NewJanitor(
		store,
		storage.NewRedisOrphanLedger(rdb),
		taskRepo,
		util.NewRetryCounter(rdb, 24*time.Hour),
		storage.JanitorConfig{
			MaxTries: cfg.Storage.MaxCleanupTries,
			Grace:    cfg.Storage.OrphanGrace,
		},
		log,
	)

	// Services
	userRepo := repository.NewUserRepository(dbConn)

	authService := auth.NewService(userRepo, util.NewTokenDenylist(rdb), cfg.JWT.Secret, cfg.JWT.TTL, log)

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig()).
		OnStateChange(func(from, to circuitbreaker.State) {
			log.Warn("Event publisher circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		})
	opts := task.Options{
		Dates:     dates.NewParser(cfg.Dates.InputLayout, cfg.Dates.DisplayFormat),
		MaxFileKB: int(cfg.Storage.MaxFileKB),
		Breaker:   breaker,
	}
	if publisher != nil {
		opts.Publisher = publisher
	}
	taskService := task.NewService(taskRepo, store, janitor, opts, log)

	// HTTP
	readyChecks := []httpserver.ReadyCheck{
		{Name: "db", Check: dbConn.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
	if publisher != nil {
		readyChecks = append(readyChecks, httpserver.ReadyCheck{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		AuthHandler:   handler.NewAuthHandler(authService, log),
		TaskHandler:   handler.NewTaskHandler(taskService, log),
		Authenticator: authService,
		PublicDir:     store.PublicDir(),
		PublicPath:    cfg.Storage.PublicURL,
		ReadyChecks:   readyChecks,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		janitor.Run(janitorCtx, cfg.Storage.ReconcileEvery)
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down tasknotes-api gracefully...")

	stopJanitor()
	<-janitorDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("tasknotes-api shutdown complete")
}
