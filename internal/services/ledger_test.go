package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Set(d core.Date) { c.now = d.Time.Add(12 * time.Hour) }

type recordingPublisher struct {
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	svc    *LedgerService
	repo   *storage.SQLiteRepository
	clock  *testClock
	pub    *recordingPublisher
	dbPath string
}

func newFixture(t *testing.T, today core.Date) *fixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	clock := &testClock{}
	clock.Set(today)
	pub := &recordingPublisher{}
	svc, err := NewLedgerService(repo, Options{Now: clock.Now, Publisher: pub})
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	return &fixture{svc: svc, repo: repo, clock: clock, pub: pub, dbPath: dbPath}
}

// failInserts makes every insert into table matching when abort, as a
// failing disk would.
func (f *fixture) failInserts(t *testing.T, table, when string) {
	t.Helper()
	db, err := sql.Open("sqlite", f.dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	stmt := fmt.Sprintf(`CREATE TRIGGER fail_%[1]s BEFORE INSERT ON %[1]s WHEN %[2]s
BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END`, table, when)
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("install failing trigger: %v", err)
	}
}

func (f *fixture) account(t *testing.T, name string, starting core.Money, rule core.SaveRule) core.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(context.Background(), core.Account{Name: name, StartingBalance: starting, AutoSave: rule})
	if err != nil {
		t.Fatalf("create account %q: %v", name, err)
	}
	return a
}

func (f *fixture) bill(t *testing.T, name string, rule core.SaveRule) core.Bill {
	t.Helper()
	b, err := f.svc.CreateBill(context.Background(), core.Bill{Name: name, Frequency: core.FrequencyMonthly, AmountToSave: rule})
	if err != nil {
		t.Fatalf("create bill %q: %v", name, err)
	}
	return b
}

func (f *fixture) week(t *testing.T, n int64, start core.Date, base core.Money) core.Week {
	t.Helper()
	w, err := f.repo.CreateWeek(context.Background(), core.Week{
		Number:       n,
		StartDate:    start,
		EndDate:      start.AddDays(6),
		RunningTotal: base,
	})
	if err != nil {
		t.Fatalf("create week %d: %v", n, err)
	}
	return w
}

func (f *fixture) add(t *testing.T, in core.NewTransaction) core.Transaction {
	t.Helper()
	tx, err := f.svc.AddTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("add %s transaction: %v", in.Type, err)
	}
	return tx
}

func (f *fixture) spend(t *testing.T, week int64, date core.Date, amount core.Money, desc string) core.Transaction {
	t.Helper()
	return f.add(t, core.NewTransaction{
		Type:        core.Spending,
		Amount:      amount,
		Date:        date,
		Description: desc,
		WeekNumber:  week,
		Category:    "Groceries",
	})
}

func (f *fixture) balance(t *testing.T, entity core.EntityType, id int64) core.Money {
	t.Helper()
	m, err := f.svc.GetCurrentBalance(context.Background(), entity, id)
	if err != nil {
		t.Fatalf("balance of %s %d: %v", entity, id, err)
	}
	return m
}

func (f *fixture) weekTotal(t *testing.T, n int64) core.Money {
	t.Helper()
	w, err := f.repo.GetWeek(context.Background(), n)
	if err != nil {
		t.Fatalf("get week %d: %v", n, err)
	}
	return w.RunningTotal
}

// assertLedger checks the replay and seed invariants and that cached,
// derived and last history totals agree.
func (f *fixture) assertLedger(t *testing.T, entity core.EntityType, id int64) {
	t.Helper()
	ctx := context.Background()
	rows, err := f.svc.History(ctx, entity, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("%s %d has no history", entity, id)
	}

	seeds := 0
	var seedDate, first core.Date
	for i, h := range rows {
		if h.TransactionID == 0 {
			seeds++
			seedDate = h.Date
		} else if first.IsZero() || h.Date.Before(first) {
			first = h.Date
		}
		if i == 0 && h.RunningTotal != h.ChangeAmount {
			t.Errorf("row %d: running %s, change %s", h.ID, h.RunningTotal, h.ChangeAmount)
		}
		if i > 0 && h.RunningTotal != rows[i-1].RunningTotal.Add(h.ChangeAmount) {
			t.Errorf("row %d: replay %s + %s != %s", h.ID, rows[i-1].RunningTotal, h.ChangeAmount, h.RunningTotal)
		}
	}
	if seeds != 1 {
		t.Errorf("seed rows = %d, want 1", seeds)
	}
	if !first.IsZero() && !seedDate.Before(first) {
		t.Errorf("seed dated %s, first transaction %s", seedDate, first)
	}

	cached := f.balance(t, entity, id)
	derived, err := f.svc.DerivedBalance(ctx, entity, id)
	if err != nil {
		t.Fatalf("derived balance: %v", err)
	}
	if cached != derived {
		t.Errorf("cached %s != derived %s", cached, derived)
	}
	if last := rows[len(rows)-1].RunningTotal; last != cached {
		t.Errorf("last history total %s != cached %s", last, cached)
	}
}

func TestNewLedgerService_SplitRatio(t *testing.T) {
	tests := []struct {
		name    string
		ratio   decimal.Decimal
		want    string
		wantErr bool
	}{
		{"default", decimal.Decimal{}, "0.5", false},
		{"custom", decimal.NewFromFloat(0.6), "0.6", false},
		{"whole", decimal.NewFromInt(1), "1", false},
		{"negative", decimal.NewFromFloat(-0.1), "", true},
		{"above one", decimal.NewFromFloat(1.5), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLedgerService(nil, Options{SplitRatio: tt.ratio})
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := svc.SplitRatio().String(); got != tt.want {
				t.Errorf("ratio = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLedgerService_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	f.pub.err = errors.New("broker down")
	f.week(t, 1, core.NewDate(2025, 1, 3), core.Dollars(100))

	tx := f.spend(t, 1, core.NewDate(2025, 1, 4), core.Dollars(10), "Lunch")
	if len(f.pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(f.pub.events))
	}
	e := f.pub.events[0]
	if e.Kind != amqp.TransactionRecorded || e.TransactionID != tx.ID || e.WeekNumber != 1 {
		t.Errorf("event = %+v", e)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	f.svc.publisher = nil
	f.week(t, 1, core.NewDate(2025, 1, 3), core.Dollars(100))
	f.spend(t, 1, core.NewDate(2025, 1, 4), core.Dollars(10), "Lunch")
}

func TestLedgerService_GetCurrentWeek(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 12))
	ctx := context.Background()

	if _, err := f.svc.GetCurrentWeek(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty ledger: err = %v, want ErrNotFound", err)
	}

	f.week(t, 1, core.NewDate(2025, 1, 3), core.Money{})
	f.week(t, 2, core.NewDate(2025, 1, 10), core.Money{})
	w, err := f.svc.GetCurrentWeek(ctx)
	if err != nil {
		t.Fatalf("current week: %v", err)
	}
	if w.Number != 2 {
		t.Errorf("current week = %d, want 2", w.Number)
	}

	f.clock.Set(core.NewDate(2025, 3, 1))
	if w, _ = f.svc.GetCurrentWeek(ctx); w.Number != 2 {
		t.Errorf("past all weeks: current = %d, want 2", w.Number)
	}
}

func TestLedgerService_GetAllTransactions(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()
	f.week(t, 1, core.NewDate(2025, 1, 3), core.Dollars(100))
	f.spend(t, 1, core.NewDate(2025, 1, 4), core.Dollars(10), "Lunch")
	f.add(t, core.NewTransaction{Type: core.Income, Amount: core.Dollars(5), Date: core.NewDate(2025, 1, 4), WeekNumber: 1})

	got, err := f.svc.GetAllTransactions(ctx, core.TransactionFilter{Type: core.Spending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Groceries" {
		t.Errorf("spending = %+v", got)
	}

	if _, err := f.svc.GetAllTransactions(ctx, core.TransactionFilter{Type: "refund"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad type: err = %v, want validation error", err)
	}
}
