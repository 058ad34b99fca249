package main

import (
	"context"
	"os"

	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/worker"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Invalid log level", log.FieldError, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting budget-worker")

	ctx, cancel := cli.GracefulShutdown(context.Background(), logger)
	defer cancel()

	app, err := cli.OpenApp(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	var events worker.EventSource
	if app.Events != nil {
		events = app.Events
	} else {
		logger.Info("AMQP disabled - running interval audits only")
	}

	w := worker.NewAuditWorker(app.Ledger, events, worker.Options{
		Interval: cfg.AuditInterval,
		Repair:   true,
		Logger:   logger,
	})
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
