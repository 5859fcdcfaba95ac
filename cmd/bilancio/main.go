package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/auth"
	"bilancio/internal/config"
	apphttp "bilancio/internal/http"
	"bilancio/internal/normalize"
	"bilancio/internal/service"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	authSvc := auth.NewService(repo, nil, cfg.SessionTTL, cfg.ResetTTL)

	// AMQP is optional: without a broker saves simply skip the mirror notify.
	var publisher service.SnapshotPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	opts := normalize.DefaultOptions()
	opts.SheetName = cfg.SheetName
	if cfg.SchemaPath != "" {
		schema, err := normalize.LoadSchema(cfg.SchemaPath)
		if err != nil {
			logger.Error("Failed to load import schema", "error", err, "path", cfg.SchemaPath)
			os.Exit(1)
		}
		opts.Schema = schema
	}

	importer := service.NewImportService(repo, publisher, opts, cfg.SalaryCategory, analytics.Filters{
		InvestmentKeyword: cfg.InvestmentKeyword,
		SavingsKeyword:    cfg.SavingsKeyword,
	})

	srv := apphttp.NewServer(":"+cfg.Port, authSvc, importer, apphttp.Options{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting bilancio server", "port", cfg.Port, "salary_category", cfg.SalaryCategory)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
