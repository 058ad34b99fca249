package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"budget/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedWeeks(t *testing.T, repo *SQLiteRepository, start core.Date, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		s := start.AddDays(i * core.DaysPerWeek)
		if _, err := repo.CreateWeek(ctx, core.Week{
			Number:    int64(i + 1),
			StartDate: s,
			EndDate:   s.AddDays(core.DaysPerWeek - 1),
		}); err != nil {
			t.Fatalf("create week %d: %v", i+1, err)
		}
	}
}

func TestGetCurrentWeek(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetCurrentWeek(ctx, core.NewDate(2025, 1, 1)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty ledger: expected ErrNotFound, got %v", err)
	}

	seedWeeks(t, repo, core.NewDate(2025, 1, 6), 4) // 2025-01-06 .. 2025-02-02

	cases := []struct {
		today core.Date
		want  int64
	}{
		{core.NewDate(2025, 1, 6), 1},
		{core.NewDate(2025, 1, 12), 1},
		{core.NewDate(2025, 1, 13), 2},
		{core.NewDate(2025, 2, 2), 4},
		{core.NewDate(2025, 3, 1), 4},  // past every week
		{core.NewDate(2024, 12, 1), 1}, // before every week
	}
	for _, tc := range cases {
		w, err := repo.GetCurrentWeek(ctx, tc.today)
		if err != nil {
			t.Fatalf("%s: %v", tc.today, err)
		}
		if w.Number != tc.want {
			t.Fatalf("%s: expected week %d, got %d", tc.today, tc.want, w.Number)
		}
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx *SQLiteRepository) error {
		if _, err := tx.CreateAccount(ctx, core.Account{Name: "Emergency"}); err != nil {
			return err
		}
		// nested call joins the outer transaction
		return tx.InTx(ctx, func(inner *SQLiteRepository) error {
			if inner != tx {
				t.Fatalf("nested InTx must reuse the transaction")
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected rollback, got %d accounts", len(accounts))
	}
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetAccount(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetWeekRunningTotal(ctx, 9, core.Money{Cents: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing week, got %v", err)
	}

	if _, err := repo.CreateAccount(ctx, core.Account{Name: "Dup"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.CreateAccount(ctx, core.Account{Name: "Dup"})
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError for unique violation, got %v", err)
	}
	if se.Op != "create account" {
		t.Fatalf("unexpected op %q", se.Op)
	}
}

func TestDefaultSaveIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.CreateAccount(ctx, core.Account{Name: "A", IsDefaultSave: true})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	second, err := repo.CreateAccount(ctx, core.Account{Name: "B", IsDefaultSave: true})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}
	def, err := repo.GetDefaultSaveAccount(ctx)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if def.ID != second.ID {
		t.Fatalf("expected %d as default, got %d", second.ID, def.ID)
	}
	a, _ := repo.GetAccount(ctx, first.ID)
	if a.IsDefaultSave {
		t.Fatalf("flag must move off the first account")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := core.Account{
		Name:            "Vacation",
		StartingBalance: core.Money{Cents: 25000},
		GoalAmount:      core.Money{Cents: 300000},
		AutoSave:        core.NewSaveRule(0.1),
	}
	out, err := repo.CreateAccount(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.RunningTotal != in.StartingBalance {
		t.Fatalf("running total must start at starting balance, got %s", out.RunningTotal)
	}
	if !out.AutoSave.IsFraction() || !out.AutoSave.Value.Equal(in.AutoSave.Value) {
		t.Fatalf("auto save lost: %s", out.AutoSave.Value)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedWeeks(t, repo, core.NewDate(2025, 1, 6), 2)

	acct, err := repo.CreateAccount(ctx, core.Account{Name: "Savings"})
	if err != nil {
		t.Fatalf("account: %v", err)
	}

	rows := []core.Transaction{
		{Type: core.Spending, Amount: core.Money{Cents: 1200}, Date: core.NewDate(2025, 1, 7), WeekNumber: 1, Category: "Food", IncludeInAnalytics: true},
		{Type: core.Spending, Amount: core.Money{Cents: 800}, Date: core.NewDate(2025, 1, 8), WeekNumber: 1, Category: "Fuel", Description: "Savings allocation", IncludeInAnalytics: true},
		{Type: core.Saving, Amount: core.Money{Cents: 5000}, Date: core.NewDate(2025, 1, 9), WeekNumber: 1, AccountID: acct.ID, BalanceDelta: core.Money{Cents: 5000}},
		{Type: core.Spending, Amount: core.Money{Cents: 300}, Date: core.NewDate(2025, 1, 14), WeekNumber: 2, Category: "Food", IncludeInAnalytics: true},
		{Type: core.Rollover, Amount: core.Money{Cents: -450}, Date: core.NewDate(2025, 1, 13), WeekNumber: 2},
	}
	for i, r := range rows {
		if _, err := repo.CreateTransaction(ctx, r); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
	}

	cases := []struct {
		name   string
		filter core.TransactionFilter
		want   int
	}{
		{"all", core.TransactionFilter{}, 5},
		{"week 1", core.TransactionFilter{WeekNumber: 1}, 3},
		{"account", core.TransactionFilter{AccountID: acct.ID}, 1},
		{"spending", core.TransactionFilter{Type: core.Spending}, 3},
		{"date range", core.TransactionFilter{From: core.NewDate(2025, 1, 8), To: core.NewDate(2025, 1, 13)}, 3},
		{"analytics", core.TransactionFilter{AnalyticsOnly: true}, 3},
		{"limit", core.TransactionFilter{Limit: 2}, 2},
	}
	for _, tc := range cases {
		got, err := repo.ListTransactions(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != tc.want {
			t.Fatalf("%s: expected %d rows, got %d", tc.name, tc.want, len(got))
		}
	}

	spent, err := repo.SumWeekSpending(ctx, 1, "ALLOCATION")
	if err != nil {
		t.Fatalf("sum spending: %v", err)
	}
	if spent.Cents != 1200 {
		t.Fatalf("allocation rows must be skipped, got %d", spent.Cents)
	}
	all, _ := repo.SumWeekSpending(ctx, 1, "")
	if all.Cents != 2000 {
		t.Fatalf("empty marker skips nothing, got %d", all.Cents)
	}
	roll, err := repo.SumWeekRollovers(ctx, 2)
	if err != nil || roll.Cents != -450 {
		t.Fatalf("rollovers: %d, %v", roll.Cents, err)
	}
	if sum, _ := repo.SumBalanceDelta(ctx, core.SavingsEntity, acct.ID); sum.Cents != 5000 {
		t.Fatalf("balance delta sum: %d", sum.Cents)
	}
}

func TestMarkRolloverApplied(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedWeeks(t, repo, core.NewDate(2025, 1, 6), 3)

	flipped, err := repo.MarkRolloverApplied(ctx, 1)
	if err != nil || !flipped {
		t.Fatalf("first mark: %v %v", flipped, err)
	}
	flipped, err = repo.MarkRolloverApplied(ctx, 1)
	if err != nil || flipped {
		t.Fatalf("second mark must be a no-op: %v %v", flipped, err)
	}

	open, err := repo.ListOpenWeeksEndedBefore(ctx, core.NewDate(2025, 1, 26))
	if err != nil {
		t.Fatalf("open weeks: %v", err)
	}
	if len(open) != 1 || open[0].Number != 2 {
		t.Fatalf("expected only week 2 open and ended, got %+v", open)
	}
}

func TestReimbursementTotals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	states := map[core.ReimbursementState]int64{
		core.ReimbursementPending:    1000,
		core.ReimbursementSubmitted:  2000,
		core.ReimbursementPartial:    400,
		core.ReimbursementReimbursed: 3000,
		core.ReimbursementDenied:     99,
	}
	for st, cents := range states {
		if _, err := repo.CreateReimbursement(ctx, core.Reimbursement{
			Amount: core.Money{Cents: cents}, Date: core.NewDate(2025, 5, 1), State: st,
		}); err != nil {
			t.Fatalf("create %s: %v", st, err)
		}
	}
	totals, err := repo.ReimbursementTotals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Pending.Cents != 1000 || totals.Outstanding.Cents != 2400 || totals.Reimbursed.Cents != 3000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	submitted, _ := repo.ListReimbursements(ctx, core.ReimbursementSubmitted)
	if len(submitted) != 1 {
		t.Fatalf("state filter: %d", len(submitted))
	}
}
