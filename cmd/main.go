package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etudehq/etude-auth/internal/account"
	"github.com/etudehq/etude-auth/internal/config"
	"github.com/etudehq/etude-auth/internal/database"
	"github.com/etudehq/etude-auth/internal/documents"
	"github.com/etudehq/etude-auth/internal/health"
	"github.com/etudehq/etude-auth/internal/oauth"
	"github.com/etudehq/etude-auth/internal/oauth/clients"
	"github.com/etudehq/etude-auth/internal/oauth/revocation"
	"github.com/etudehq/etude-auth/internal/oauth/service"
	"github.com/etudehq/etude-auth/internal/oauth/token"
	"github.com/etudehq/etude-auth/internal/web/handler"
	"github.com/etudehq/etude-auth/internal/web/middleware"
)

func main() {
	ctx := context.Background()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Graceful shutdown support by listening for interruptions
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.Server)

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	accounts := account.NewService(&db)
	docs := documents.NewService(&db)
	codes := service.NewAuthorizationCodeService(&db)
	refreshTokens := service.NewRefreshTokenService(&db)

	// The client table lives either in configuration (a JSON object keyed
	// by client id) or in the database.
	var clientRegistry clients.Registry
	if cfg.OAuth.ClientsJSON != "" {
		configRegistry, err := clients.NewConfigRegistryFromJSON(cfg.OAuth.ClientsJSON)
		if err != nil {
			return fmt.Errorf("failed to parse OAuth client table: %w", err)
		}
		clientRegistry = configRegistry
		logger.Info("using configured OAuth client table")
	} else {
		clientRegistry = clients.NewStoreRegistry(&db)
		logger.Info("using database-backed OAuth client table")
	}

	// Revoked token ids live in Redis when the cache is enabled so
	// revocations survive restarts and are shared across instances.
	var revocations revocation.Registry
	var cachePinger health.Pinger
	if cfg.Cache.Enabled {
		redisRegistry := revocation.NewRedisRegistry(cfg.Cache)
		if err := redisRegistry.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisRegistry.Close()
		revocations = redisRegistry
		cachePinger = redisRegistry
		logger.Info("using Redis revocation registry", "addr", cfg.Cache.RedisAddr)
	} else {
		revocations = revocation.NewMemoryRegistry()
		logger.Info("using in-memory revocation registry")
	}

	if cfg.OAuth.SeedDemoData {
		if err := seedDemoData(ctx, logger, accounts, clientRegistry); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	oauthService := oauth.NewService(
		logger,
		cfg.OAuth,
		oauth.NewValidator(clientRegistry),
		&accounts,
		codes,
		refreshTokens,
		token.NewCodec(cfg.OAuth.SigningSecret),
		revocations,
	)

	checker := health.NewChecker(&db, cachePinger, logger)

	oauthHandler := handler.NewOAuthHandler(&cfg, logger, oauthService)
	apiHandler := handler.NewAPIHandler(logger, oauthService, &accounts, &docs)
	healthHandler := handler.NewHealthHandler(&checker)

	mux := http.NewServeMux()
	oauthHandler.RegisterRoutes(mux)
	apiHandler.RegisterRoutes(mux)
	healthHandler.RegisterRoutes(mux)

	root := middleware.Chain(
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)(mux)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        root,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening and serving", "addr", server.Addr, "environment", cfg.Server.Environment)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("shutdown completed")
	}

	return nil
}

func newLogger(cfg config.Server) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}

	var loggerHandler slog.Handler
	if cfg.IsProduction() {
		loggerHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		loggerHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(loggerHandler)
}
