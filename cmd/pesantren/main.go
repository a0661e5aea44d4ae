package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pesantren/internal/amqp"
	"pesantren/internal/auth"
	"pesantren/internal/cli"
	apphttp "pesantren/internal/http"
	"pesantren/internal/log"
	"pesantren/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.OpenStore(context.Background(), logger, cfg)
	defer closeStore()

	// Ledger events are optional; the report worker's ticker covers a
	// missing broker.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.EventsEnabled() {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err.Error())
		} else {
			amqpClient = c
			publisher = c
			logger.Info("Ledger events enabled", "exchange", cfg.AMQPExchange)
		}
	}

	app := cli.NewApp(store, cfg, publisher, logger)
	app.Caches.StartCleanup(time.Minute)

	authSvc := auth.NewService(store, cfg.JWTSecret, cfg.SessionTTL, logger.Logger)
	if cfg.AdminEmail != "" {
		created, err := authSvc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Error("Failed to create admin account", log.FieldError, err.Error())
			os.Exit(1)
		}
		if created {
			logger.Info("Admin account created", "email", cfg.AdminEmail)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:           authSvc,
		Ledger:         app.Ledger,
		Directory:      app.Directory,
		Reports:        app.Reports,
		Monitoring:     app.Monitoring,
		Dashboards:     app.Dashboards,
		Activities:     app.Activities,
		Ready:          app.Ping,
		PageSizes:      apphttp.PageSizes{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize},
		LoginRateLimit: cfg.LoginRateLimit,
		WriteRateLimit: cfg.WriteRateLimit,
		Logger:         logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		app.Caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting pesantren server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
