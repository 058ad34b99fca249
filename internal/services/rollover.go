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

// RolloverResult reports what closing a week did. Applied is false when
// the week had already been closed.
type RolloverResult struct {
	WeekNumber  int64
	Applied     bool
	Amount      core.Money
	TargetWeek  int64
	Transaction core.Transaction
}

// CloseWeek carries the week's leftover (or deficit) into the next week as
// a rollover transaction and marks the week closed. Closing a closed week
// is a no-op.
func (s *LedgerService) CloseWeek(ctx context.Context, n int64) (RolloverResult, error) {
	res := RolloverResult{WeekNumber: n, TargetWeek: n + 1}
	today := s.today()

	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		w, err := tx.GetWeek(ctx, n)
		if err != nil {
			return err
		}
		if w.RolloverApplied {
			return nil
		}
		if !w.Ended(today) {
			return fmt.Errorf("week %d ends %s: %w", n, w.EndDate, core.ErrWeekNotEnded)
		}
		target, err := tx.GetWeek(ctx, n+1)
		if errors.Is(err, core.ErrNotFound) {
			return &core.NoTargetWeekError{WeekNumber: n, TargetWeek: n + 1}
		}
		if err != nil {
			return err
		}

		sum, err := s.weekFigures(ctx, tx, w)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Rollover from Week %d", n)
		if sum.Current.IsNegative() {
			desc = fmt.Sprintf("Deficit rollover from Week %d", n)
		}
		res.Transaction, err = record(ctx, tx, core.NewTransaction{
			Type:                 core.Rollover,
			Amount:               sum.Current,
			Date:                 target.StartDate,
			Description:          desc,
			WeekNumber:           target.Number,
			ExcludeFromAnalytics: true,
		})
		if err != nil {
			return err
		}

		flipped, err := tx.MarkRolloverApplied(ctx, n)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("week %d was closed by another writer", n)
		}
		res.Applied = true
		res.Amount = sum.Current
		return nil
	})
	if err != nil {
		return RolloverResult{}, fmt.Errorf("close week %d: %w", n, err)
	}
	if !res.Applied {
		slog.DebugContext(ctx, "Week already closed", "week_number", n)
		return res, nil
	}

	metrics.RolloversApplied.WithLabelValues(metrics.Sign(res.Amount.Cents)).Inc()
	metrics.TransactionsRecorded.WithLabelValues(string(core.Rollover)).Inc()
	slog.InfoContext(ctx, "Week closed",
		"week_number", n,
		"target_week", res.TargetWeek,
		"amount_cents", res.Amount.Cents,
		"transaction_id", res.Transaction.ID)

	e := eventFor(amqp.WeekClosed, res.Transaction)
	e.WeekNumber = n
	s.publish(ctx, e)
	return res, nil
}

// CloseElapsedWeeks closes every open week that has ended, oldest first.
// It stops without error at the first week whose successor does not exist
// yet; the next paycheck makes it closable.
func (s *LedgerService) CloseElapsedWeeks(ctx context.Context) ([]RolloverResult, error) {
	weeks, err := s.storage.ListOpenWeeksEndedBefore(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("list open weeks: %w", err)
	}

	var results []RolloverResult
	for _, w := range weeks {
		res, err := s.CloseWeek(ctx, w.Number)
		var nt *core.NoTargetWeekError
		if errors.As(err, &nt) {
			slog.InfoContext(ctx, "Stopping week close-out, next week not created yet",
				"week_number", w.Number)
			break
		}
		if err != nil {
			return results, err
		}
		if res.Applied {
			results = append(results, res)
		}
	}
	return results, nil
}

// weekFigures computes starting and current money for w:
// starting = base + signed rollovers in, current = starting - spending.
func (s *LedgerService) weekFigures(ctx context.Context, tx *storage.SQLiteRepository, w core.Week) (core.WeekSummary, error) {
	rollIn, err := tx.SumWeekRollovers(ctx, w.Number)
	if err != nil {
		return core.WeekSummary{}, err
	}
	spending, err := tx.SumWeekSpending(ctx, w.Number, s.marker)
	if err != nil {
		return core.WeekSummary{}, err
	}
	starting := w.RunningTotal.Add(rollIn)
	return core.WeekSummary{
		Week:       w,
		Base:       w.RunningTotal,
		RolloverIn: rollIn,
		Spending:   spending,
		Starting:   starting,
		Current:    starting.Sub(spending),
	}, nil
}

// WeekSummary reports the figures of week n. Zero selects the current week.
func (s *LedgerService) WeekSummary(ctx context.Context, n int64) (core.WeekSummary, error) {
	w, err := s.weekOrCurrent(ctx, n)
	if err != nil {
		return core.WeekSummary{}, err
	}
	sum, err := s.weekFigures(ctx, s.storage, w)
	if err != nil {
		return core.WeekSummary{}, fmt.Errorf("summarize week %d: %w", w.Number, err)
	}
	if sum.ByCategory, err = s.storage.WeekSpendingByCategory(ctx, w.Number, s.marker); err != nil {
		return core.WeekSummary{}, fmt.Errorf("summarize week %d: %w", w.Number, err)
	}
	return sum, nil
}

// PayPeriodSummary reports both weeks of the pay period containing week n.
// Zero selects the current week.
func (s *LedgerService) PayPeriodSummary(ctx context.Context, n int64) (core.PayPeriodSummary, error) {
	w, err := s.weekOrCurrent(ctx, n)
	if err != nil {
		return core.PayPeriodSummary{}, err
	}
	first, second := core.PairOf(w.Number)

	var out core.PayPeriodSummary
	if out.Week1, err = s.WeekSummary(ctx, first); err != nil {
		return core.PayPeriodSummary{}, err
	}
	out.Spending, out.Current = out.Week1.Spending, out.Week1.Current

	out.Week2, err = s.WeekSummary(ctx, second)
	switch {
	case errors.Is(err, core.ErrNotFound):
		out.Week2 = core.WeekSummary{}
	case err != nil:
		return core.PayPeriodSummary{}, err
	default:
		// Week 2's rollover in is week 1's leftover, already counted here.
		out.HasWeek2 = true
		out.Spending = out.Spending.Add(out.Week2.Spending)
		out.Current = out.Week1.Starting.Add(out.Week2.Base).Sub(out.Spending)
	}
	return out, nil
}

func (s *LedgerService) weekOrCurrent(ctx context.Context, n int64) (core.Week, error) {
	if n == 0 {
		return s.GetCurrentWeek(ctx)
	}
	return s.storage.GetWeek(ctx, n)
}
