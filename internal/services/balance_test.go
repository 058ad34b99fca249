package services

import (
	"context"
	"errors"
	"testing"

	"budget/internal/amqp"
	"budget/internal/core"
)

func TestAuditAndRepair_CleanLedger(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	f.week(t, 1, core.NewDate(2025, 1, 3), core.Dollars(100))
	acct := f.account(t, "Emergency", core.Dollars(200), core.SaveRule{})
	f.add(t, core.NewTransaction{Type: core.Saving, Amount: core.Dollars(50), Date: core.NewDate(2025, 1, 4), WeekNumber: 1, AccountID: acct.ID})

	report, err := f.svc.AuditAndRepair(context.Background(), core.SavingsEntity, acct.ID, false)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(report.Issues) != 0 || report.Repaired || report.Name != "Emergency" {
		t.Errorf("report = %+v", report)
	}
}

func TestAuditAndRepair_DetectsAndRepairs(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()
	f.week(t, 1, core.NewDate(2025, 1, 3), core.Dollars(100))
	acct := f.account(t, "Emergency", core.Dollars(200), core.SaveRule{})
	save := f.add(t, core.NewTransaction{Type: core.Saving, Amount: core.Dollars(50), Date: core.NewDate(2025, 1, 5), WeekNumber: 1, AccountID: acct.ID})
	income := f.add(t, core.NewTransaction{Type: core.Income, Amount: core.Dollars(900), Date: core.NewDate(2025, 1, 5), WeekNumber: 1})

	// Corrupt the ledger the ways the old repair scripts had to handle.
	if err := f.repo.SetRunningTotal(ctx, core.SavingsEntity, acct.ID, core.Dollars(999)); err != nil {
		t.Fatalf("corrupt cached total: %v", err)
	}
	rows, err := f.repo.ListHistory(ctx, core.SavingsEntity, acct.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	seed, _ := findSeed(rows)
	seed.Date = core.NewDate(2025, 1, 6)
	if err := f.repo.UpdateHistory(ctx, seed); err != nil {
		t.Fatalf("redate seed: %v", err)
	}
	if _, err := f.repo.CreateHistory(ctx, core.HistoryEntry{
		EntityID: acct.ID, EntityType: core.SavingsEntity, ChangeAmount: core.Dollars(200),
		Date: core.NewDate(2025, 1, 10), Description: "duplicate seed",
	}); err != nil {
		t.Fatalf("duplicate seed: %v", err)
	}
	if _, err := f.repo.CreateHistory(ctx, core.HistoryEntry{
		TransactionID: income.ID, EntityID: acct.ID, EntityType: core.SavingsEntity, ChangeAmount: core.Dollars(900),
		Date: core.NewDate(2025, 1, 5), Description: "stray",
	}); err != nil {
		t.Fatalf("orphan row: %v", err)
	}
	saveRow, err := f.repo.HistoryForTransaction(ctx, save.ID)
	if err != nil {
		t.Fatalf("save row: %v", err)
	}
	if err := f.repo.DeleteHistory(ctx, saveRow.ID); err != nil {
		t.Fatalf("drop save row: %v", err)
	}

	report, err := f.svc.AuditAndRepair(ctx, core.SavingsEntity, acct.ID, false)
	var ce *core.ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConsistencyError", err)
	}
	if len(ce.Issues) < 4 || len(report.Issues) != len(ce.Issues) || report.Repaired {
		t.Errorf("issues = %q", ce.Issues)
	}
	if got := f.balance(t, core.SavingsEntity, acct.ID); got != core.Dollars(999) {
		t.Errorf("audit without repair changed the balance to %s", got)
	}

	fixed, err := f.svc.AuditAndRepair(ctx, core.SavingsEntity, acct.ID, true)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !fixed.Repaired {
		t.Error("report not marked repaired")
	}
	if got := f.balance(t, core.SavingsEntity, acct.ID); got != core.Dollars(250) {
		t.Errorf("repaired balance = %s, want $250.00", got)
	}
	f.assertLedger(t, core.SavingsEntity, acct.ID)

	clean, err := f.svc.AuditAndRepair(ctx, core.SavingsEntity, acct.ID, false)
	if err != nil || len(clean.Issues) != 0 {
		t.Errorf("audit after repair = %+v, %v", clean, err)
	}
	last := f.pub.events[len(f.pub.events)-1]
	if last.Kind != amqp.LedgerRepaired {
		t.Errorf("last event = %s, want ledger repaired", last.Kind)
	}
}

func TestAuditAndRepair_MissingSeed(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()
	bill := f.bill(t, "Gym", core.SaveRule{})
	rows, err := f.repo.ListHistory(ctx, core.BillEntity, bill.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("history = %+v, %v", rows, err)
	}
	if err := f.repo.DeleteHistory(ctx, rows[0].ID); err != nil {
		t.Fatalf("drop seed: %v", err)
	}

	if _, err := f.svc.AuditAndRepair(ctx, core.BillEntity, bill.ID, true); err != nil {
		t.Fatalf("repair: %v", err)
	}
	f.assertLedger(t, core.BillEntity, bill.ID)
}

func TestAuditAll(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()
	good := f.account(t, "Good", core.Dollars(10), core.SaveRule{})
	bad := f.account(t, "Bad", core.Dollars(10), core.SaveRule{})
	bill := f.bill(t, "Bad bill", core.SaveRule{})
	if err := f.repo.SetRunningTotal(ctx, core.SavingsEntity, bad.ID, core.Dollars(11)); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if err := f.repo.SetRunningTotal(ctx, core.BillEntity, bill.ID, core.Dollars(1)); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	reports, err := f.svc.AuditAll(ctx, false)
	var ce *core.ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConsistencyError", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %+v, want 2", reports)
	}
	for _, r := range reports {
		if r.ID == good.ID && r.Entity == core.SavingsEntity {
			t.Errorf("clean account reported: %+v", r)
		}
	}

	if _, err := f.svc.AuditAll(ctx, true); err != nil {
		t.Fatalf("repair all: %v", err)
	}
	if reports, err := f.svc.AuditAll(ctx, false); err != nil || len(reports) != 0 {
		t.Errorf("after repair = %+v, %v", reports, err)
	}
}

func TestAuditAndRepair_UnknownEntity(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	if _, err := f.svc.AuditAndRepair(context.Background(), "loan", 1, false); !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if _, err := f.svc.AuditAndRepair(context.Background(), core.SavingsEntity, 42, false); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
