package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is the ledger store. A repository returned by InTx is
// bound to one SQL transaction; every call on it joins that transaction.
type SQLiteRepository struct {
	db      *sql.DB
	tx      *sql.Tx
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The ledger has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.tx != nil {
		return errors.New("close called inside a transaction")
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return wrap("ping", r.db.PingContext(ctx))
}

// InTx runs fn inside one SQL transaction and commits when fn returns nil.
// Nested calls join the outer transaction.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx *SQLiteRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin", err)
	}
	defer sqlTx.Rollback()

	txRepo := &SQLiteRepository{
		db:      r.db,
		tx:      sqlTx,
		queries: r.queries.WithTx(sqlTx),
	}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// wrap maps driver failures to StorageError and missing rows to ErrNotFound.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	var se *core.StorageError
	if errors.As(err, &se) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

func mustAffect(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func formatDate(d core.Date) string { return d.String() }

// parseDate reads a date column; every stored date is written by formatDate.
func parseDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func nullDate(d core.Date) sql.NullString {
	return sql.NullString{String: formatDate(d), Valid: !d.IsZero()}
}

func parseNullDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	return parseDate(s.String)
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseRule(s string) core.SaveRule {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.SaveRule{}
	}
	return core.SaveRule{Value: d}
}

func formatRule(r core.SaveRule) string {
	return r.Value.String()
}

func toAccount(a Account) core.Account {
	return core.Account{
		ID:              a.ID,
		Name:            a.Name,
		StartingBalance: core.Money{Cents: a.StartingBalanceCents},
		GoalAmount:      core.Money{Cents: a.GoalAmountCents},
		AutoSave:        parseRule(a.AutoSaveAmount),
		IsDefaultSave:   a.IsDefaultSave,
		RunningTotal:    core.Money{Cents: a.RunningTotalCents},
	}
}

func toBill(b Bill) core.Bill {
	return core.Bill{
		ID:                b.ID,
		Name:              b.Name,
		BillType:          b.BillType,
		Frequency:         core.PaymentFrequency(b.PaymentFrequency),
		TypicalAmount:     core.Money{Cents: b.TypicalAmountCents},
		IsVariable:        b.IsVariable,
		AmountToSave:      parseRule(b.AmountToSave),
		StartingBalance:   core.Money{Cents: b.StartingBalanceCents},
		RunningTotal:      core.Money{Cents: b.RunningTotalCents},
		LastPaymentDate:   parseNullDate(b.LastPaymentDate),
		LastPaymentAmount: core.Money{Cents: b.LastPaymentAmountCents},
		Notes:             b.Notes,
	}
}

// CreateAccount inserts the account with running_total set to its starting
// balance. Setting IsDefaultSave moves the flag from any other account.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.IsDefaultSave {
		if err := r.queries.ClearDefaultSave(ctx); err != nil {
			return core.Account{}, wrap("clear default save", err)
		}
	}
	row, err := r.queries.CreateAccount(ctx, CreateAccountParams{
		Name:                 a.Name,
		StartingBalanceCents: a.StartingBalance.Cents,
		GoalAmountCents:      a.GoalAmount.Cents,
		AutoSaveAmount:       formatRule(a.AutoSave),
		IsDefaultSave:        a.IsDefaultSave,
		RunningTotalCents:    a.StartingBalance.Cents,
	})
	if err != nil {
		return core.Account{}, wrap("create account", err)
	}

	slog.DebugContext(ctx, "Account saved to SQLite", "account_id", row.ID, "name", row.Name)
	return toAccount(row), nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, wrap(fmt.Sprintf("get account %d", id), err)
	}
	return toAccount(row), nil
}

func (r *SQLiteRepository) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	row, err := r.queries.GetAccountByName(ctx, name)
	if err != nil {
		return core.Account{}, wrap(fmt.Sprintf("get account %q", name), err)
	}
	return toAccount(row), nil
}

// GetDefaultSaveAccount returns ErrNotFound when no account carries the flag.
func (r *SQLiteRepository) GetDefaultSaveAccount(ctx context.Context) (core.Account, error) {
	row, err := r.queries.GetDefaultSaveAccount(ctx)
	if err != nil {
		return core.Account{}, wrap("get default save account", err)
	}
	return toAccount(row), nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, wrap("list accounts", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = toAccount(a)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	row, err := r.queries.CreateBill(ctx, CreateBillParams{
		Name:                 b.Name,
		BillType:             b.BillType,
		PaymentFrequency:     string(b.Frequency),
		TypicalAmountCents:   b.TypicalAmount.Cents,
		IsVariable:           b.IsVariable || b.TypicalAmount.IsZero(),
		AmountToSave:         formatRule(b.AmountToSave),
		StartingBalanceCents: b.StartingBalance.Cents,
		RunningTotalCents:    b.StartingBalance.Cents,
		Notes:                b.Notes,
	})
	if err != nil {
		return core.Bill{}, wrap("create bill", err)
	}

	slog.DebugContext(ctx, "Bill saved to SQLite", "bill_id", row.ID, "name", row.Name)
	return toBill(row), nil
}

func (r *SQLiteRepository) GetBill(ctx context.Context, id int64) (core.Bill, error) {
	row, err := r.queries.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, wrap(fmt.Sprintf("get bill %d", id), err)
	}
	return toBill(row), nil
}

func (r *SQLiteRepository) GetBillByName(ctx context.Context, name string) (core.Bill, error) {
	row, err := r.queries.GetBillByName(ctx, name)
	if err != nil {
		return core.Bill{}, wrap(fmt.Sprintf("get bill %q", name), err)
	}
	return toBill(row), nil
}

func (r *SQLiteRepository) ListBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.queries.ListBills(ctx)
	if err != nil {
		return nil, wrap("list bills", err)
	}
	out := make([]core.Bill, len(rows))
	for i, b := range rows {
		out[i] = toBill(b)
	}
	return out, nil
}

func (r *SQLiteRepository) SetBillLastPayment(ctx context.Context, id int64, date core.Date, amount core.Money) error {
	err := r.queries.UpdateBillLastPayment(ctx, UpdateBillLastPaymentParams{
		LastPaymentDate:        nullDate(date),
		LastPaymentAmountCents: amount.Cents,
		ID:                     id,
	})
	return wrap("update bill last payment", err)
}

// GetBucket loads the balance fields of an account or bill.
func (r *SQLiteRepository) GetBucket(ctx context.Context, entity core.EntityType, id int64) (core.Bucket, error) {
	switch entity {
	case core.SavingsEntity:
		a, err := r.GetAccount(ctx, id)
		if err != nil {
			return core.Bucket{}, err
		}
		return core.Bucket{Entity: entity, ID: a.ID, Name: a.Name, StartingBalance: a.StartingBalance, RunningTotal: a.RunningTotal}, nil
	case core.BillEntity:
		b, err := r.GetBill(ctx, id)
		if err != nil {
			return core.Bucket{}, err
		}
		return core.Bucket{Entity: entity, ID: b.ID, Name: b.Name, StartingBalance: b.StartingBalance, RunningTotal: b.RunningTotal}, nil
	}
	return core.Bucket{}, core.Invalid("entity_type", "unknown entity type %q", entity)
}

// SetRunningTotal overwrites the cached balance of an account or bill.
func (r *SQLiteRepository) SetRunningTotal(ctx context.Context, entity core.EntityType, id int64, total core.Money) error {
	switch entity {
	case core.SavingsEntity:
		res, err := r.queries.UpdateAccountRunningTotal(ctx, UpdateAccountRunningTotalParams{RunningTotalCents: total.Cents, ID: id})
		return mustAffect(fmt.Sprintf("update account %d running total", id), res, err)
	case core.BillEntity:
		res, err := r.queries.UpdateBillRunningTotal(ctx, UpdateBillRunningTotalParams{RunningTotalCents: total.Cents, ID: id})
		return mustAffect(fmt.Sprintf("update bill %d running total", id), res, err)
	}
	return core.Invalid("entity_type", "unknown entity type %q", entity)
}

// SumBalanceDelta adds up the resolved effect of every transaction that
// references the bucket.
func (r *SQLiteRepository) SumBalanceDelta(ctx context.Context, entity core.EntityType, id int64) (core.Money, error) {
	var (
		sum int64
		err error
	)
	switch entity {
	case core.SavingsEntity:
		sum, err = r.queries.SumAccountBalanceDelta(ctx, id)
	case core.BillEntity:
		sum, err = r.queries.SumBillBalanceDelta(ctx, id)
	default:
		return core.Money{}, core.Invalid("entity_type", "unknown entity type %q", entity)
	}
	if err != nil {
		return core.Money{}, wrap("sum balance delta", err)
	}
	return core.Money{Cents: sum}, nil
}
