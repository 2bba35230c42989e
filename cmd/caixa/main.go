package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"caixa/internal/amqp"
	"caixa/internal/config"
	apphttp "caixa/internal/http"
	applog "caixa/internal/log"
	"caixa/internal/services"
	"caixa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	modulesSnapshot, err := config.LoadModules(cfg.ModulesPath)
	if err != nil {
		logger.Error("Failed to load modules file", "error", err, "path", cfg.ModulesPath)
		os.Exit(1)
	}
	modules := config.NewStore(modulesSnapshot)
	logger.Info("Modules loaded",
		"organization", modulesSnapshot.Organization.Name,
		"currency", modulesSnapshot.Currency())

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Event publishing is optional: without a broker the engine still runs,
	// it just sends no notifications.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	audit := services.NewAuditService(repo, modules, logger)
	finance := services.NewFinanceService(repo, audit, events, modules, logger)
	scheduler := services.NewSchedulerService(finance, audit, modules, logger)
	voting := services.NewVotingService(repo, finance, audit, events, modules, logger)
	identity := services.NewIdentityService(repo, audit, cfg.IsAdminEmail, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Finance:    finance,
		Voting:     voting,
		Scheduler:  scheduler,
		Audit:      audit,
		Identity:   identity,
		Modules:    modules,
		CronSecret: cfg.CronSecret,
		Logger:     logger,
	})

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

	logger.Info("Starting caixa server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
