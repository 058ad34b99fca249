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

// EditTransactionAmount changes a transaction's amount and rebalances.
// The bucket moves by the type's edit delta; a saving edit also moves the
// opposite amount out of a week's allotment. The first such edit pins the
// current week and later edits adjust that same week. Both legs of a
// transfer are edited together and never touch the week.
func (s *LedgerService) EditTransactionAmount(ctx context.Context, id int64, amount core.Money) (core.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Err: err}
	}

	var edited []core.Transaction
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		legs, err := editableLegs(ctx, tx, id)
		if err != nil {
			return err
		}
		transfer := len(legs) > 1
		for _, t := range legs {
			t, err = s.applyEdit(ctx, tx, t, amount, !transfer && t.Type.MovesWeekOnEdit())
			if err != nil {
				return err
			}
			edited = append(edited, t)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("edit transaction %d: %w", id, err)
	}

	var out core.Transaction
	for _, t := range edited {
		if t.ID == id {
			out = t
		}
		metrics.TransactionsEdited.WithLabelValues("edit").Inc()
		slog.InfoContext(ctx, "Transaction amount edited",
			"transaction_id", t.ID,
			"transaction_type", t.Type,
			"amount_cents", t.Amount.Cents,
			"balance_delta_cents", t.BalanceDelta.Cents,
			"week_adjustment_cents", t.WeekAdjustment.Cents,
			"week_adjustment_week", t.WeekAdjustmentWeek)
		s.publish(ctx, eventFor(amqp.TransactionEdited, t))
	}
	return out, nil
}

// DeleteTransaction undoes a transaction: the bucket loses its resolved
// effect, any week adjustment made by edits is returned to the week that
// gave it up and the history row is removed with later rows re-chained.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	var deleted []core.Transaction
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		legs, err := editableLegs(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, t := range legs {
			if err := s.applyDelete(ctx, tx, t); err != nil {
				return err
			}
		}
		deleted = legs
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	for _, t := range deleted {
		metrics.TransactionsEdited.WithLabelValues("delete").Inc()
		slog.InfoContext(ctx, "Transaction deleted",
			"transaction_id", t.ID,
			"transaction_type", t.Type,
			"amount_cents", t.Amount.Cents)
		s.publish(ctx, eventFor(amqp.TransactionDeleted, t))
	}
	return nil
}

// editableLegs loads the transaction and, for transfers, its other leg.
func editableLegs(ctx context.Context, tx *storage.SQLiteRepository, id int64) ([]core.Transaction, error) {
	t, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Type.Editable() {
		return nil, core.Invalid("transaction_type", "%s transactions cannot be edited or deleted", t.Type)
	}
	if t.TransferGroupID == "" {
		return []core.Transaction{t}, nil
	}
	return tx.ListTransferGroup(ctx, t.TransferGroupID)
}

func (s *LedgerService) applyEdit(ctx context.Context, tx *storage.SQLiteRepository, t core.Transaction, amount core.Money, moveWeek bool) (core.Transaction, error) {
	delta := t.Type.EditDelta(t.Amount, amount)
	weekMove := core.Money{}
	if moveWeek {
		weekMove = amount.Sub(t.Amount).Neg()
	}

	if !weekMove.IsZero() {
		n, err := s.adjustmentWeek(ctx, tx, t)
		if err != nil {
			return core.Transaction{}, err
		}
		t.WeekAdjustmentWeek = n
		if err := adjustWeek(ctx, tx, n, weekMove); err != nil {
			return core.Transaction{}, err
		}
	}

	t.Amount = amount
	t.BalanceDelta = t.BalanceDelta.Add(delta)
	t.WeekAdjustment = t.WeekAdjustment.Add(weekMove)
	if err := tx.UpdateTransactionAmount(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if t.Type == core.BillPay {
		if err := syncLastPayment(ctx, tx, t.BillID); err != nil {
			return core.Transaction{}, err
		}
	}

	entity, id, ok := t.Target()
	if !ok {
		return t, nil
	}
	b, err := tx.GetBucket(ctx, entity, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := tx.SetRunningTotal(ctx, entity, id, b.RunningTotal.Add(delta)); err != nil {
		return core.Transaction{}, err
	}
	h, err := tx.HistoryForTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	h.ChangeAmount = t.BalanceDelta
	if err := tx.UpdateHistory(ctx, h); err != nil {
		return core.Transaction{}, err
	}
	if _, err := rechain(ctx, tx, entity, id); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *LedgerService) applyDelete(ctx context.Context, tx *storage.SQLiteRepository, t core.Transaction) error {
	if !t.WeekAdjustment.IsZero() {
		n, err := s.adjustmentWeek(ctx, tx, t)
		if err != nil {
			return err
		}
		if err := adjustWeek(ctx, tx, n, t.WeekAdjustment.Neg()); err != nil {
			return err
		}
	}

	entity, id, hasBucket := t.Target()
	if hasBucket {
		h, err := tx.HistoryForTransaction(ctx, t.ID)
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := tx.DeleteHistory(ctx, h.ID); err != nil {
				return err
			}
		}
		b, err := tx.GetBucket(ctx, entity, id)
		if err != nil {
			return err
		}
		if err := tx.SetRunningTotal(ctx, entity, id, b.RunningTotal.Sub(t.BalanceDelta)); err != nil {
			return err
		}
	}

	if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
		return err
	}
	if t.Type == core.BillPay {
		if err := syncLastPayment(ctx, tx, t.BillID); err != nil {
			return err
		}
	}
	if hasBucket {
		if _, err := rechain(ctx, tx, entity, id); err != nil {
			return err
		}
	}
	return nil
}

// syncLastPayment points the bill's last payment fields at its latest
// remaining bill_pay, or clears them.
func syncLastPayment(ctx context.Context, tx *storage.SQLiteRepository, billID int64) error {
	pays, err := tx.ListTransactions(ctx, core.TransactionFilter{BillID: billID, Type: core.BillPay})
	if err != nil {
		return err
	}
	if len(pays) == 0 {
		return tx.SetBillLastPayment(ctx, billID, core.Date{}, core.Money{})
	}
	last := pays[len(pays)-1]
	return tx.SetBillLastPayment(ctx, billID, last.Date, last.Amount)
}

// adjustmentWeek is the week holding t's edit adjustment. Rows that have
// none pinned yet use the current week.
func (s *LedgerService) adjustmentWeek(ctx context.Context, tx *storage.SQLiteRepository, t core.Transaction) (int64, error) {
	if t.WeekAdjustmentWeek != 0 {
		return t.WeekAdjustmentWeek, nil
	}
	w, err := tx.GetCurrentWeek(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("resolve current week: %w", err)
	}
	return w.Number, nil
}

// adjustWeek adds amount to week n's allotment.
func adjustWeek(ctx context.Context, tx *storage.SQLiteRepository, n int64, amount core.Money) error {
	w, err := tx.GetWeek(ctx, n)
	if err != nil {
		return fmt.Errorf("resolve adjusted week: %w", err)
	}
	return tx.SetWeekRunningTotal(ctx, w.Number, w.RunningTotal.Add(amount))
}
