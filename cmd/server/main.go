package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime-chat-api/internal/auth"
	"realtime-chat-api/internal/config"
	"realtime-chat-api/internal/database"
	"realtime-chat-api/internal/logger"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/routes"
	"realtime-chat-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Configuration & logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	gormLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		gormLevel = gormlogger.Info
	}
	db, err := database.Open(cfg.DBPath, gormLevel)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		_ = database.Close(db)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores & presence sinks
	users := store.NewUserStore(db)
	messages := store.NewGormMessageStore(db)
	sinks := []store.PresenceSink{users}
	if cfg.RedisEnabled() {
		redisPresence, err := store.NewRedisPresence(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			NodeID:   cfg.NodeID,
			TTL:      cfg.PresenceTTL,
		})
		if err != nil {
			return err
		}
		defer func() { _ = redisPresence.Close() }()
		sinks = append(sinks, redisPresence)
		log.Info("redis presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	}

	// Realtime core
	tokens := auth.NewTokens(auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
	hub := realtime.NewHub(messages, log.Named("hub"), realtime.Options{
		DefaultRoom: cfg.DefaultRoom,
		EchoSelf:    cfg.EchoSelf,
	}, sinks...)
	monitor := realtime.NewMonitor(hub, cfg.HeartbeatInterval, log.Named("liveness"))
	go monitor.Run(ctx)

	// HTTP server
	router := routes.SetupRoutes(routes.Deps{
		Config:        cfg,
		Authenticator: auth.NewCachedResolver(tokens, cfg.TokenCacheTTL),
		Tokens:        tokens,
		Users:         users,
		Messages:      messages,
		Hub:           hub,
		Log:           log.Named("http"),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.WithCORS(router, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("default_room", cfg.DefaultRoom),
			zap.Strings("allowed_origins", cfg.AllowedOrigins))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	closed := hub.Shutdown(shutdownCtx)
	log.Info("server stopped", zap.Int("closed_connections", closed))
	return nil
}
