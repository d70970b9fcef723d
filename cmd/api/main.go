package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/api"
	"github.com/safar/monmiam/internal/auth"
	"github.com/safar/monmiam/internal/cache"
	"github.com/safar/monmiam/internal/config"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/events"
	"github.com/safar/monmiam/internal/logging"
	"github.com/safar/monmiam/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
	limiterIdle     = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	st := store.New(db)
	if cfg.Auth.AdminEmail != "" {
		if err := ensureAdmin(ctx, st, cfg.Auth); err != nil {
			logger.Fatal("ensure admin account", zap.Error(err))
		}
		logger.Info("admin account ready", zap.String("email", cfg.Auth.AdminEmail))
	}

	hub := events.NewHub(logger.Named("hub"))
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.Kafka)
		defer kafka.Close()
		publishers = append(publishers, kafka)
		logger.Info("publishing order events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	limiter := api.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	go limiter.Cleanup(ctx, limiterIdle)

	opts := api.Options{
		Store:     st,
		Issuer:    auth.NewIssuer(cfg.Auth),
		Publisher: publishers,
		Hub:       hub,
		Limiter:   limiter,
		Logger:    logger,
		PublicURL: cfg.Server.PublicURL,
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		opts.Idempotency = cache.NewRedisIdempotency(rdb, cfg.Redis.IdempotencyTTL)
		logger.Info("idempotency replay cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	router := api.NewServer(opts).Router()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.LogRequests(logger)(api.SecurityHeaders(corsHandler)),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func ensureAdmin(ctx context.Context, st *store.Store, cfg config.AuthConfig) error {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	_, err = st.EnsureAdmin(ctx, store.NewCustomer{
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hash,
	})
	return err
}
