package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/metrics"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
)

// DefaultAllocationMarker is the description substring that keeps a
// spending row out of the rollover spending total.
const DefaultAllocationMarker = "allocation"

// EventPublisher receives ledger events after a mutation commits.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// Options tunes a LedgerService. Zero values select the defaults.
type Options struct {
	SplitRatio       decimal.Decimal // share of the residual given to week 1, default 0.5
	AllocationMarker string
	Publisher        EventPublisher
	Now              func() time.Time
}

// LedgerService is the contract boundary over the ledger store: the
// recorder, paycheck allocator, rollover engine, balance model and the
// admin edit path all hang off it.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	publisher  EventPublisher
	splitRatio decimal.Decimal
	marker     string
	now        func() time.Time
}

func NewLedgerService(store *storage.SQLiteRepository, opts Options) (*LedgerService, error) {
	ratio := opts.SplitRatio
	if ratio.IsZero() {
		ratio = decimal.NewFromFloat(0.5)
	}
	if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, core.Invalid("split_ratio", "must be between 0 and 1, got %s", ratio)
	}
	marker := opts.AllocationMarker
	if marker == "" {
		marker = DefaultAllocationMarker
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		storage:    store,
		publisher:  opts.Publisher,
		splitRatio: ratio,
		marker:     marker,
		now:        now,
	}, nil
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.now())
}

// SplitRatio returns the configured week 1 share.
func (s *LedgerService) SplitRatio() decimal.Decimal {
	return s.splitRatio
}

// publish hands e to the publisher. Failures are logged and counted; the
// ledger change has already committed.
func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping ledger event", "kind", e.Kind)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, e); err != nil {
		metrics.EventPublishFailures.Inc()
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_id", e.ID,
			"kind", e.Kind,
			"error", err)
	}
}

func eventFor(kind amqp.EventKind, t core.Transaction) *amqp.LedgerEvent {
	e := amqp.NewLedgerEvent(kind)
	e.TransactionID = t.ID
	e.WeekNumber = t.WeekNumber
	e.AmountCents = t.Amount.Cents
	if entity, id, ok := t.Target(); ok {
		e.Touch(string(entity), id)
	}
	return e
}

// GetAllAccounts lists accounts by name.
func (s *LedgerService) GetAllAccounts(ctx context.Context) ([]core.Account, error) {
	return s.storage.ListAccounts(ctx)
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.storage.GetAccount(ctx, id)
}

// GetAllBills lists bills by name.
func (s *LedgerService) GetAllBills(ctx context.Context) ([]core.Bill, error) {
	return s.storage.ListBills(ctx)
}

func (s *LedgerService) GetBill(ctx context.Context, id int64) (core.Bill, error) {
	return s.storage.GetBill(ctx, id)
}

// GetAllWeeks lists weeks by week number.
func (s *LedgerService) GetAllWeeks(ctx context.Context) ([]core.Week, error) {
	return s.storage.ListWeeks(ctx)
}

func (s *LedgerService) GetWeek(ctx context.Context, n int64) (core.Week, error) {
	return s.storage.GetWeek(ctx, n)
}

// GetCurrentWeek resolves the current week for today's date.
func (s *LedgerService) GetCurrentWeek(ctx context.Context) (core.Week, error) {
	return s.storage.GetCurrentWeek(ctx, s.today())
}

func (s *LedgerService) GetAllTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, &core.ValidationError{Field: "transaction_type", Err: core.ErrInvalidType}
	}
	return s.storage.ListTransactions(ctx, f)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// Ping checks the store.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// Close closes the store. The publisher is owned by the caller.
func (s *LedgerService) Close() error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
