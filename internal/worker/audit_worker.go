package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/services"

	"golang.org/x/sync/errgroup"
)

// Ledger is the part of the ledger service the worker drives.
type Ledger interface {
	AuditAndRepair(ctx context.Context, entity core.EntityType, id int64, repair bool) (services.AuditReport, error)
	AuditAll(ctx context.Context, repair bool) ([]services.AuditReport, error)
}

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// AuditWorker re-checks the history chain of every bucket a committed
// mutation touched, and sweeps the whole ledger on an interval as a
// backstop for lost events. It never closes weeks.
type AuditWorker struct {
	ledger   Ledger
	events   EventSource
	interval time.Duration
	repair   bool
	logger   *log.Logger
}

// Options tunes an AuditWorker.
type Options struct {
	Interval time.Duration // sweep period, default one hour
	Repair   bool          // fix defects instead of only reporting them
	Logger   *log.Logger
}

func NewAuditWorker(ledger Ledger, events EventSource, opts Options) *AuditWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AuditWorker{
		ledger:   ledger,
		events:   events,
		interval: interval,
		repair:   opts.Repair,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerEvent audits the buckets named by one event. Consistency
// findings are logged and acknowledged; only storage failures are returned
// so the delivery is requeued.
func (w *AuditWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	// Repair events are emitted by audits themselves.
	if e.Kind == amqp.LedgerRepaired {
		return nil
	}

	w.logger.DebugContext(ctx, "Processing ledger event",
		log.FieldEventID, e.ID,
		"kind", e.Kind,
		"buckets", len(e.Buckets))

	metrics.AuditRuns.WithLabelValues("event").Inc()
	for _, b := range e.Buckets {
		entity := core.EntityType(b.EntityType)
		report, err := w.ledger.AuditAndRepair(ctx, entity, b.ID, w.repair)
		if err := w.classify(ctx, entity, b.ID, err); err != nil {
			return fmt.Errorf("audit %s %d: %w", entity, b.ID, err)
		}
		if report.Repaired {
			w.logger.InfoContext(ctx, "Repaired ledger after event",
				log.FieldEventID, e.ID,
				log.FieldEntityType, entity,
				log.FieldEntityID, b.ID,
				"issues", len(report.Issues))
		}
	}
	return nil
}

// classify swallows the errors a redelivery could never fix.
func (w *AuditWorker) classify(ctx context.Context, entity core.EntityType, id int64, err error) error {
	var ce *core.ConsistencyError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		w.logger.WarnContext(ctx, "Ledger inconsistency detected",
			log.FieldEntityType, entity,
			log.FieldEntityID, id,
			"issues", ce.Issues)
		return nil
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrValidation):
		w.logger.WarnContext(ctx, "Skipping audit of unknown bucket",
			log.FieldEntityType, entity,
			log.FieldEntityID, id,
			log.FieldError, err)
		return nil
	}
	return err
}

// Sweep audits every bucket.
func (w *AuditWorker) Sweep(ctx context.Context) error {
	metrics.AuditRuns.WithLabelValues("interval").Inc()

	reports, auditErr := w.ledger.AuditAll(ctx, w.repair)
	var ce *core.ConsistencyError
	if auditErr != nil && !errors.As(auditErr, &ce) {
		return fmt.Errorf("audit ledger: %w", auditErr)
	}

	repaired := 0
	for _, r := range reports {
		if r.Repaired {
			repaired++
		}
	}
	w.logger.InfoContext(ctx, "Ledger sweep completed",
		"inconsistent", len(reports),
		"repaired", repaired)
	return nil
}

// Run sweeps once, then consumes events and sweeps on the interval until
// ctx is cancelled or the consumer fails.
func (w *AuditWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Performing startup ledger sweep")
	if err := w.Sweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if w.events != nil {
		g.Go(func() error {
			return w.events.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
		})
	} else {
		w.logger.InfoContext(ctx, "Skipping event consumption - no event source configured")
	}
	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.Sweep(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic sweep failed", log.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
