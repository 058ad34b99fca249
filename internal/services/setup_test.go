package services

import (
	"context"
	"errors"
	"testing"

	"budget/internal/core"
)

func TestApplySetup_Idempotent(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()
	accounts := []core.Account{
		{Name: "Emergency", StartingBalance: core.Dollars(500), AutoSave: core.NewSaveRule(0.05), IsDefaultSave: true},
		{Name: "Vacation", AutoSave: core.NewSaveRule(25)},
	}
	bills := []core.Bill{
		{Name: "Rent", TypicalAmount: core.Dollars(1200), AmountToSave: core.NewSaveRule(600)},
		{Name: "Car insurance", Frequency: core.FrequencySemiAnnual, AmountToSave: core.NewSaveRule(0.1)},
	}

	first, err := f.svc.ApplySetup(ctx, accounts, bills)
	if err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if len(first.CreatedAccounts) != 2 || len(first.CreatedBills) != 2 || len(first.Existing) != 0 {
		t.Fatalf("first = %+v", first)
	}
	if first.CreatedBills[0].Frequency != core.FrequencyMonthly {
		t.Errorf("rent frequency = %q, want monthly default", first.CreatedBills[0].Frequency)
	}
	for _, a := range first.CreatedAccounts {
		f.assertLedger(t, core.SavingsEntity, a.ID)
	}
	for _, b := range first.CreatedBills {
		f.assertLedger(t, core.BillEntity, b.ID)
	}

	second, err := f.svc.ApplySetup(ctx, accounts, append(bills, core.Bill{Name: "Phone", AmountToSave: core.NewSaveRule(40)}))
	if err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if len(second.CreatedAccounts) != 0 || len(second.CreatedBills) != 1 || len(second.Existing) != 4 {
		t.Errorf("second = %+v", second)
	}

	all, err := f.svc.GetAllAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("accounts = %d, want 2", len(all))
	}
	if got := f.balance(t, core.SavingsEntity, first.CreatedAccounts[0].ID); got != core.Dollars(500) {
		t.Errorf("emergency balance = %s, want $500.00", got)
	}
}

func TestApplySetup_RollsBackOnInvalidEntry(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	ctx := context.Background()

	_, err := f.svc.ApplySetup(ctx,
		[]core.Account{{Name: "Emergency"}},
		[]core.Bill{{Name: "Rent", Frequency: "fortnightly"}})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	accounts, err := f.svc.GetAllAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("failed setup left %d accounts", len(accounts))
	}
}

func TestCreateAccount_DuplicateName(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 5))
	f.account(t, "Emergency", core.Money{}, core.SaveRule{})

	_, err := f.svc.CreateAccount(context.Background(), core.Account{Name: "  Emergency "})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("err = %v, want name validation error", err)
	}
	if _, err := f.svc.CreateBill(context.Background(), core.Bill{Name: ""}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty bill name: err = %v", err)
	}
}
