package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"budget/internal/amqp"
	"budget/internal/core"

	"github.com/shopspring/decimal"
)

func TestProcessPaycheck_Scenario(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 3))
	bill := f.bill(t, "Car insurance", core.NewSaveRule(0.1))
	acct := f.account(t, "Emergency", core.Dollars(250), core.NewSaveRule(50))

	res, err := f.svc.ProcessPaycheck(context.Background(), core.Dollars(1500), core.NewDate(2025, 1, 3))
	if err != nil {
		t.Fatalf("process paycheck: %v", err)
	}

	if res.Income.Type != core.Income || res.Income.Amount != core.Dollars(1500) {
		t.Errorf("income = %+v", res.Income)
	}
	if len(res.BillReservations) != 1 || res.BillReservations[0].Amount != core.Dollars(150) {
		t.Fatalf("bill reservations = %+v", res.BillReservations)
	}
	if len(res.AccountReservations) != 1 || res.AccountReservations[0].Amount != core.Dollars(50) {
		t.Fatalf("account reservations = %+v", res.AccountReservations)
	}
	if res.Residual != core.Dollars(1300) {
		t.Errorf("residual = %s, want $1300.00", res.Residual)
	}
	if res.Week1.RunningTotal != core.Dollars(650) || res.Week2.RunningTotal != core.Dollars(650) {
		t.Errorf("weeks = %s / %s, want $650.00 each", res.Week1.RunningTotal, res.Week2.RunningTotal)
	}

	if got := f.balance(t, core.BillEntity, bill.ID); got != core.Dollars(150) {
		t.Errorf("bill balance = %s", got)
	}
	if got := f.balance(t, core.SavingsEntity, acct.ID); got != core.Dollars(300) {
		t.Errorf("account balance = %s", got)
	}
	for _, tx := range append(res.BillReservations, res.AccountReservations...) {
		if tx.Type != core.Saving || tx.WeekNumber != res.Week1.Number {
			t.Errorf("reservation = %+v", tx)
		}
	}
	f.assertLedger(t, core.BillEntity, bill.ID)
	f.assertLedger(t, core.SavingsEntity, acct.ID)

	if len(f.pub.events) != 1 || f.pub.events[0].Kind != amqp.PaycheckProcessed || len(f.pub.events[0].Buckets) != 2 {
		t.Errorf("events = %+v", f.pub.events)
	}
}

func TestProcessPaycheck_SaveRuleDispatch(t *testing.T) {
	tests := []struct {
		name     string
		rule     core.SaveRule
		paycheck core.Money
		want     core.Money
	}{
		{"fraction", core.NewSaveRule(0.2), core.Dollars(1000), core.Dollars(200)},
		{"fixed", core.NewSaveRule(50), core.Dollars(1000), core.Dollars(50)},
		{"fixed small paycheck", core.NewSaveRule(50), core.Dollars(80), core.Dollars(50)},
		{"exactly one is fixed", core.NewSaveRule(1), core.Dollars(1000), core.Dollars(1)},
		{"fraction rounds", core.NewSaveRule(0.333), core.Dollars(100.01), core.Dollars(33.30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, core.NewDate(2025, 1, 3))
			f.account(t, "Savings", core.Money{}, tt.rule)

			res, err := f.svc.ProcessPaycheck(context.Background(), tt.paycheck, core.NewDate(2025, 1, 3))
			if err != nil {
				t.Fatalf("process paycheck: %v", err)
			}
			if len(res.AccountReservations) != 1 {
				t.Fatalf("reservations = %d, want 1", len(res.AccountReservations))
			}
			if got := res.AccountReservations[0].Amount; got != tt.want {
				t.Errorf("reservation = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProcessPaycheck_Conservation(t *testing.T) {
	tests := []struct {
		name     string
		paycheck core.Money
		ratio    float64
		bills    []float64
		accounts []float64
	}{
		{"even", core.Dollars(2000), 0.5, []float64{0.1, 120}, []float64{0.05}},
		{"odd cents", core.Dollars(1000.01), 0.5, []float64{0.333, 75.55}, []float64{0.125}},
		{"uneven split", core.Dollars(1234.57), 0.6, []float64{0.07}, []float64{33.33, 0.015}},
		{"overcommitted", core.Dollars(500), 0.5, []float64{400}, []float64{0.5}},
		{"no rules", core.Dollars(999.99), 0.5, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, core.NewDate(2025, 1, 3))
			svc, err := NewLedgerService(f.repo, Options{SplitRatio: decimal.NewFromFloat(tt.ratio), Now: f.clock.Now})
			if err != nil {
				t.Fatalf("new service: %v", err)
			}
			for i, v := range tt.bills {
				f.bill(t, "Bill "+string(rune('A'+i)), core.NewSaveRule(v))
			}
			for i, v := range tt.accounts {
				f.account(t, "Account "+string(rune('A'+i)), core.Money{}, core.NewSaveRule(v))
			}

			res, err := svc.ProcessPaycheck(context.Background(), tt.paycheck, core.NewDate(2025, 1, 3))
			if err != nil {
				t.Fatalf("process paycheck: %v", err)
			}
			total := res.Reserved().Add(res.Week1.RunningTotal).Add(res.Week2.RunningTotal)
			if total != tt.paycheck {
				t.Errorf("reserved %s + weeks %s/%s = %s, want %s",
					res.Reserved(), res.Week1.RunningTotal, res.Week2.RunningTotal, total, tt.paycheck)
			}
			if want := res.Residual.MulFraction(decimal.NewFromFloat(tt.ratio)); res.Week1.RunningTotal != want {
				t.Errorf("week1 = %s, want %s", res.Week1.RunningTotal, want)
			}
		})
	}
}

func TestProcessPaycheck_WeekDates(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 3))
	ctx := context.Background()

	first, err := f.svc.ProcessPaycheck(ctx, core.Dollars(1000), core.NewDate(2025, 1, 3))
	if err != nil {
		t.Fatalf("first paycheck: %v", err)
	}
	second, err := f.svc.ProcessPaycheck(ctx, core.Dollars(1000), core.NewDate(2025, 1, 16))
	if err != nil {
		t.Fatalf("second paycheck: %v", err)
	}

	tests := []struct {
		week       core.Week
		number     int64
		start, end core.Date
	}{
		{first.Week1, 1, core.NewDate(2025, 1, 3), core.NewDate(2025, 1, 9)},
		{first.Week2, 2, core.NewDate(2025, 1, 10), core.NewDate(2025, 1, 16)},
		{second.Week1, 3, core.NewDate(2025, 1, 17), core.NewDate(2025, 1, 23)},
		{second.Week2, 4, core.NewDate(2025, 1, 24), core.NewDate(2025, 1, 30)},
	}
	for _, tt := range tests {
		if tt.week.Number != tt.number || !tt.week.StartDate.Equal(tt.start) || !tt.week.EndDate.Equal(tt.end) {
			t.Errorf("week %d = %d %s..%s, want %s..%s", tt.number, tt.week.Number, tt.week.StartDate, tt.week.EndDate, tt.start, tt.end)
		}
	}
	if second.Income.WeekNumber != 3 {
		t.Errorf("second income attributed to week %d, want 3", second.Income.WeekNumber)
	}
}

func TestProcessPaycheck_InvalidInput(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 3))
	ctx := context.Background()

	if _, err := f.svc.ProcessPaycheck(ctx, core.Money{}, core.NewDate(2025, 1, 3)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("zero amount: err = %v", err)
	}
	if _, err := f.svc.ProcessPaycheck(ctx, core.Dollars(10), core.Date{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("zero date: err = %v", err)
	}
	weeks, err := f.svc.GetAllWeeks(ctx)
	if err != nil {
		t.Fatalf("list weeks: %v", err)
	}
	if len(weeks) != 0 {
		t.Errorf("rejected paychecks created %d weeks", len(weeks))
	}
}

func TestProcessPaycheck_RollsBackOnReservationFailure(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 3))
	ctx := context.Background()
	bill := f.bill(t, "Car insurance", core.NewSaveRule(0.1))
	first := f.account(t, "Emergency", core.Dollars(250), core.NewSaveRule(50))
	second := f.account(t, "Vacation", core.Dollars(80), core.NewSaveRule(25))
	f.failInserts(t, "transactions", fmt.Sprintf("NEW.account_id = %d", second.ID))

	_, err := f.svc.ProcessPaycheck(ctx, core.Dollars(1500), core.NewDate(2025, 1, 3))
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want storage error", err)
	}

	weeks, err := f.svc.GetAllWeeks(ctx)
	if err != nil {
		t.Fatalf("list weeks: %v", err)
	}
	if len(weeks) != 0 {
		t.Errorf("failed paycheck left %d weeks", len(weeks))
	}
	all, err := f.svc.GetAllTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("failed paycheck left %d transactions", len(all))
	}

	balances := []struct {
		entity core.EntityType
		id     int64
		want   core.Money
	}{
		{core.BillEntity, bill.ID, core.Money{}},
		{core.SavingsEntity, first.ID, core.Dollars(250)},
		{core.SavingsEntity, second.ID, core.Dollars(80)},
	}
	for _, b := range balances {
		if got := f.balance(t, b.entity, b.id); got != b.want {
			t.Errorf("%s %d = %s, want %s", b.entity, b.id, got, b.want)
		}
		f.assertLedger(t, b.entity, b.id)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("failed paycheck published %d events", len(f.pub.events))
	}
}

func TestProcessPaycheck_LongNames(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 3))
	ctx := context.Background()
	name := strings.Repeat("é", core.MaxNameLen)
	acct := f.account(t, name, core.Money{}, core.NewSaveRule(50))
	bill := f.bill(t, strings.Repeat("b", core.MaxNameLen), core.NewSaveRule(20))

	res, err := f.svc.ProcessPaycheck(ctx, core.Dollars(1000), core.NewDate(2025, 1, 3))
	if err != nil {
		t.Fatalf("process paycheck: %v", err)
	}
	for _, tx := range append(res.BillReservations, res.AccountReservations...) {
		if len(tx.Description) > core.MaxDescriptionLen || !utf8.ValidString(tx.Description) {
			t.Errorf("description %q: %d bytes", tx.Description, len(tx.Description))
		}
	}
	if got := f.balance(t, core.SavingsEntity, acct.ID); got != core.Dollars(50) {
		t.Errorf("account = %s, want $50.00", got)
	}
	if _, err := f.svc.PayBill(ctx, bill.ID, core.Dollars(15), core.NewDate(2025, 1, 4), 0); err != nil {
		t.Errorf("pay bill: %v", err)
	}
	other := f.account(t, strings.Repeat("z", core.MaxNameLen), core.Dollars(10), core.SaveRule{})
	if _, _, err := f.svc.Transfer(ctx, TransferRequest{FromAccountID: acct.ID, ToAccountID: other.ID, Amount: core.Dollars(5), Date: core.NewDate(2025, 1, 4)}); err != nil {
		t.Errorf("transfer: %v", err)
	}

	_, err = f.svc.CreateAccount(ctx, core.Account{Name: strings.Repeat("a", core.MaxNameLen+1)})
	if !errors.Is(err, core.ErrNameTooLong) {
		t.Errorf("over-long account name: err = %v, want ErrNameTooLong", err)
	}
}
