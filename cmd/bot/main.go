// Order intake bot for electrical installation work.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elektromontazh/orderbot/internal/api"
	"github.com/elektromontazh/orderbot/internal/artifact"
	"github.com/elektromontazh/orderbot/internal/commit"
	"github.com/elektromontazh/orderbot/internal/config"
	"github.com/elektromontazh/orderbot/internal/dialog"
	"github.com/elektromontazh/orderbot/internal/ledger"
	"github.com/elektromontazh/orderbot/internal/store"
	"github.com/elektromontazh/orderbot/internal/telegram"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting order bot", "port", cfg.Port, "files_dir", cfg.FilesDir)

	if err := os.MkdirAll(cfg.FilesDir, 0755); err != nil {
		slog.Error("Failed to create files directory", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	led, err := ledger.New(cfg.LedgerPath)
	if err != nil {
		slog.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	bot, err := telegram.New(cfg.TelegramToken, cfg.AdminID)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	sessions := dialog.NewStore()
	builder := artifact.NewBuilder(cfg.FilesDir)
	orchestrator := commit.New(repo, led, builder, bot, bot, sessions, cfg.Domain)
	engine := dialog.NewEngine(sessions, bot, bot, orchestrator, cfg.FilesDir)

	// Setup router for bundle downloads.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	api.NewFilesHandler(cfg.FilesDir).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start file server.
	go func() {
		slog.Info("File server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("File server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Start update loop.
	go func() {
		bot.Run(ctx, engine)
	}()
	slog.Info("Update loop started")

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Bot stopped successfully")
}
