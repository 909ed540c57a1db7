package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radixapp/radix/internal/api"
	"github.com/radixapp/radix/internal/auth"
	"github.com/radixapp/radix/internal/config"
	"github.com/radixapp/radix/internal/database"
	"github.com/radixapp/radix/internal/judge"
	"github.com/radixapp/radix/internal/middleware"
	"github.com/radixapp/radix/internal/room"
	"github.com/radixapp/radix/internal/server"
)

func main() {
	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context for initialization
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	if err := database.EnsureSchema(ctx, db, "migrations"); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	problemRepo := database.NewProblemRepository(db)

	// Shared secret with the frontend (use a default for dev if not set)
	authSecret := cfg.AuthSecret
	if authSecret == "" {
		if cfg.IsDevelopment() {
			authSecret = "dev-auth-secret-do-not-use-in-production!" // 41 chars
			slog.Warn("using default auth secret - DO NOT USE IN PRODUCTION")
		} else {
			slog.Error("AUTH_SECRET is required in production")
			os.Exit(1)
		}
	}

	tokenService, err := auth.NewTokenService(authSecret)
	if err != nil {
		slog.Error("failed to create token service", "error", err)
		os.Exit(1)
	}

	// Initialize auth service
	authService := auth.NewService(userRepo)

	// Judge pipeline against the Piston sandbox
	piston := judge.NewPistonClient(cfg.PistonURL)
	runner := judge.NewRunner(piston, logger)
	slog.Info("judge configured", "piston_url", cfg.PistonURL)

	// Room registry
	registry := room.NewRegistry(runner.Judge, logger)

	// Initialize handlers
	roomHandler := api.NewRoomHandler(registry, problemRepo, cfg.CORSOrigin, logger)
	problemHandler := api.NewProblemHandler(problemRepo, logger)
	authHandler := api.NewAuthHandler(userRepo, logger)

	// Create and start server
	deps := &server.Dependencies{
		DB:             db,
		AuthService:    authService,
		TokenService:   tokenService,
		RoomHandler:    roomHandler,
		ProblemHandler: problemHandler,
		AuthHandler:    authHandler,
		RateLimiter:    middleware.NewRateLimiter(120),
		Logger:         logger,
	}

	srv := server.New(cfg, deps)

	// Graceful shutdown setup
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-shutdownCtx.Done()
	slog.Info("shutting down gracefully...")

	// Give active connections 10 seconds to finish
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
