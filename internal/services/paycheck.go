package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/metrics"
	"budget/internal/storage"
)

// PaycheckResult is everything one paycheck created.
type PaycheckResult struct {
	Income              core.Transaction
	BillReservations    []core.Transaction
	AccountReservations []core.Transaction
	Residual            core.Money
	Week1               core.Week
	Week2               core.Week
}

// Reserved sums the bill and account reservations.
func (r PaycheckResult) Reserved() core.Money {
	var sum core.Money
	for _, t := range r.BillReservations {
		sum = sum.Add(t.Amount)
	}
	for _, t := range r.AccountReservations {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// ProcessPaycheck records the income, reserves every bill and account save
// rule against it and splits the residual across two new weeks. The whole
// allocation is one transaction.
func (s *LedgerService) ProcessPaycheck(ctx context.Context, amount core.Money, date core.Date) (PaycheckResult, error) {
	if err := amount.Validate(); err != nil {
		return PaycheckResult{}, &core.ValidationError{Field: "amount", Err: err}
	}
	if err := date.Validate(); err != nil {
		return PaycheckResult{}, &core.ValidationError{Field: "date", Err: err}
	}

	var res PaycheckResult
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		bills, err := tx.ListBills(ctx)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}

		reserved := core.Money{}
		for _, b := range bills {
			reserved = reserved.Add(b.AmountToSave.Reserve(amount))
		}
		for _, a := range accounts {
			reserved = reserved.Add(a.AutoSave.Reserve(amount))
		}
		res.Residual = amount.Sub(reserved)
		first, second := res.Residual.Split(s.splitRatio)

		start, number := date, int64(1)
		last, err := tx.GetLastWeek(ctx)
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return err
		default:
			start, number = last.EndDate.AddDays(1), last.Number+1
		}

		if res.Week1, err = tx.CreateWeek(ctx, core.Week{
			Number:       number,
			StartDate:    start,
			EndDate:      start.AddDays(core.DaysPerWeek - 1),
			RunningTotal: first,
		}); err != nil {
			return err
		}
		if res.Week2, err = tx.CreateWeek(ctx, core.Week{
			Number:       number + 1,
			StartDate:    start.AddDays(core.DaysPerWeek),
			EndDate:      start.AddDays(2*core.DaysPerWeek - 1),
			RunningTotal: second,
		}); err != nil {
			return err
		}

		if res.Income, err = record(ctx, tx, core.NewTransaction{
			Type:        core.Income,
			Amount:      amount,
			Date:        date,
			Description: "Bi-weekly paycheck",
			WeekNumber:  res.Week1.Number,
		}); err != nil {
			return err
		}

		for _, b := range bills {
			r := b.AmountToSave.Reserve(amount)
			if r.Cents <= 0 {
				continue
			}
			t, err := record(ctx, tx, core.NewTransaction{
				Type:        core.Saving,
				Amount:      r,
				Date:        date,
				Description: core.Describe("Savings allocation for %s", b.Name),
				WeekNumber:  res.Week1.Number,
				BillID:      b.ID,
			})
			if err != nil {
				return fmt.Errorf("reserve for bill %q: %w", b.Name, err)
			}
			res.BillReservations = append(res.BillReservations, t)
		}

		for _, a := range accounts {
			r := a.AutoSave.Reserve(amount)
			if r.Cents <= 0 {
				continue
			}
			t, err := record(ctx, tx, core.NewTransaction{
				Type:        core.Saving,
				Amount:      r,
				Date:        date,
				Description: core.Describe("Auto-save to %s", a.Name),
				WeekNumber:  res.Week1.Number,
				AccountID:   a.ID,
			})
			if err != nil {
				return fmt.Errorf("reserve for account %q: %w", a.Name, err)
			}
			res.AccountReservations = append(res.AccountReservations, t)
		}
		return nil
	})
	if err != nil {
		return PaycheckResult{}, fmt.Errorf("process paycheck: %w", err)
	}

	metrics.PaychecksProcessed.Inc()
	metrics.PaycheckAmount.Observe(amount.Float())
	metrics.TransactionsRecorded.WithLabelValues(string(core.Income)).Inc()
	metrics.TransactionsRecorded.WithLabelValues(string(core.Saving)).
		Add(float64(len(res.BillReservations) + len(res.AccountReservations)))
	if res.Residual.IsNegative() {
		slog.WarnContext(ctx, "Paycheck reservations exceed the paycheck",
			"amount_cents", amount.Cents,
			"reserved_cents", res.Reserved().Cents,
			"residual_cents", res.Residual.Cents)
	}
	slog.InfoContext(ctx, "Paycheck processed",
		"amount_cents", amount.Cents,
		"bill_reservations", len(res.BillReservations),
		"account_reservations", len(res.AccountReservations),
		"week1", res.Week1.Number,
		"week1_cents", res.Week1.RunningTotal.Cents,
		"week2", res.Week2.Number,
		"week2_cents", res.Week2.RunningTotal.Cents)

	e := eventFor(amqp.PaycheckProcessed, res.Income)
	for _, t := range res.BillReservations {
		e.Touch(string(core.BillEntity), t.BillID)
	}
	for _, t := range res.AccountReservations {
		e.Touch(string(core.SavingsEntity), t.AccountID)
	}
	s.publish(ctx, e)
	return res, nil
}
