// Package cli provides the budget command tree and the initialization
// shared by cmd/budget and cmd/budget-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"budget/internal/amqp"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

// App bundles the resources a command runs against.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  *storage.SQLiteRepository
	Ledger *services.LedgerService
	Events *amqp.Client // nil when AMQP_URL is unset
}

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger.
func SetupLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Output = os.Stderr
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig loads the optional .env file, then the
// environment, and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenApp connects the store, the optional event client and the ledger
// service. withEvents=false skips AMQP entirely.
func OpenApp(ctx context.Context, cfg *config.Config, logger *log.Logger, withEvents bool) (*App, error) {
	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize SQLite repository",
			log.FieldError, err,
			"path", cfg.SQLiteDBPath)
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, Store: store}
	opts := services.Options{
		SplitRatio:       cfg.SplitRatio(),
		AllocationMarker: cfg.AllocationMarker,
	}

	if withEvents && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The ledger works without events; the worker sweep catches up.
			logger.WarnContext(ctx, "AMQP unavailable, ledger events disabled",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
		} else {
			app.Events = client
			opts.Publisher = client
		}
	}

	app.Ledger, err = services.NewLedgerService(store, opts)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the event client and the store.
func (a *App) Close() error {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	return a.Store.Close()
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(ctx context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.InfoContext(ctx, "Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
