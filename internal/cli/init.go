// Package cli provides the initialization shared by cmd/pesantren,
// cmd/report-worker and cmd/roster-import.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pesantren/internal/backend"
	"pesantren/internal/cache"
	"pesantren/internal/config"
	"pesantren/internal/core"
	"pesantren/internal/log"
	"pesantren/internal/services"
	"pesantren/internal/storage"
)

// reportCacheSize is the number of monthly reports kept in memory.
const reportCacheSize = 24

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:    strings.ToLower(os.Getenv("LOG_FORMAT")),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the configured storage backend.
// Returns the store and its cleanup or exits the process on failure.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (storage.Store, func()) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend",
			log.FieldError, err.Error(),
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	cleanup := func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close storage backend", log.FieldError, err.Error())
		}
	}
	return res.Store, cleanup
}

// App bundles the services built on one store.
type App struct {
	Store      storage.Store
	Activities *services.Activities
	Reports    *services.Reports
	Ledger     *services.Ledger
	Directory  *services.Directory
	Monitoring *services.Monitoring
	Dashboards *services.Dashboards
	Caches     *cache.Manager
}

// NewApp wires the services. publisher may be nil to disable ledger events.
func NewApp(store storage.Store, cfg *config.Config, publisher services.EventPublisher, logger *log.Logger) *App {
	var reportCache cache.Cache[core.MonthlyReport]
	caches := cache.NewManager(logger.Logger)
	if cfg.ReportCacheTTL > 0 {
		lru := cache.NewLRUCache[core.MonthlyReport](reportCacheSize, cfg.ReportCacheTTL)
		caches.Register(lru)
		reportCache = lru
	}

	activities := services.NewActivities(store, logger.Logger)
	reports := services.NewReports(store, reportCache, cfg.InstitutionName, logger.Logger)
	return &App{
		Store:      store,
		Activities: activities,
		Reports:    reports,
		Ledger:     services.NewLedger(store, activities, publisher, reports, logger.Logger),
		Directory:  services.NewDirectory(store, activities, logger.Logger),
		Monitoring: services.NewMonitoring(store, logger.Logger),
		Dashboards: services.NewDashboards(store),
		Caches:     caches,
	}
}

// Ping checks the store when it supports health checks.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.Store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
