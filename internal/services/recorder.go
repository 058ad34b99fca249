package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/storage"

	"github.com/google/uuid"
)

// AddTransaction validates and records one transaction. The insert, the
// bucket balance update and its history row commit together.
func (s *LedgerService) AddTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if in.Type == core.Rollover {
		return core.Transaction{}, core.Invalid("transaction_type", "rollover transactions are created by closing a week")
	}

	var t core.Transaction
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		var err error
		t, err = record(ctx, tx, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.recorded(ctx, t)
	return t, nil
}

// recorded runs the post-commit side effects of a new transaction.
func (s *LedgerService) recorded(ctx context.Context, t core.Transaction) {
	metrics.TransactionsRecorded.WithLabelValues(string(t.Type)).Inc()
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogTransactionRecorded(ctx, t.ID, string(t.Type), t.Amount.Cents, t.WeekNumber)
	s.publish(ctx, eventFor(amqp.TransactionRecorded, t))
}

// record is the single write path for transactions; it must run inside tx.
func record(ctx context.Context, tx *storage.SQLiteRepository, in core.NewTransaction) (core.Transaction, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if _, err := tx.GetWeek(ctx, in.WeekNumber); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, core.Invalid("week_number", "week %d does not exist", in.WeekNumber)
		}
		return core.Transaction{}, err
	}

	var (
		bucket    core.Bucket
		hasBucket bool
	)
	if entity, id, ok := in.Target(); ok {
		b, err := tx.GetBucket(ctx, entity, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				field := "account_id"
				if entity == core.BillEntity {
					field = "bill_id"
				}
				return core.Transaction{}, core.Invalid(field, "%s %d does not exist", entity, id)
			}
			return core.Transaction{}, err
		}
		bucket, hasBucket = b, true
	}

	before := bucket.RunningTotal
	if in.Type == core.BillPay {
		var err error
		if before, err = billBalanceAt(ctx, tx, bucket, in.Date); err != nil {
			return core.Transaction{}, err
		}
	}

	t, err := tx.CreateTransaction(ctx, core.Transaction{
		Type:               in.Type,
		Amount:             in.Amount,
		Date:               in.Date,
		Description:        in.Description,
		WeekNumber:         in.WeekNumber,
		Category:           in.Category,
		AccountID:          in.AccountID,
		BillID:             in.BillID,
		IncludeInAnalytics: !in.ExcludeFromAnalytics,
		BalanceDelta:       in.Type.BalanceDelta(in.Amount, before),
		TransferGroupID:    in.TransferGroupID,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	if !hasBucket {
		return t, nil
	}

	if err := tx.SetRunningTotal(ctx, bucket.Entity, bucket.ID, bucket.RunningTotal.Add(t.BalanceDelta)); err != nil {
		return core.Transaction{}, err
	}
	if t.Type == core.BillPay {
		if err := tx.SetBillLastPayment(ctx, bucket.ID, t.Date, t.Amount); err != nil {
			return core.Transaction{}, err
		}
	}
	if err := appendHistory(ctx, tx, bucket, t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// billBalanceAt is the bill's balance at the end of date. A payment may
// not be dated before a later payment, whose reset would then miss zero.
func billBalanceAt(ctx context.Context, tx *storage.SQLiteRepository, b core.Bucket, date core.Date) (core.Money, error) {
	later, err := tx.ListTransactions(ctx, core.TransactionFilter{
		BillID: b.ID,
		Type:   core.BillPay,
		From:   date.AddDays(1),
		Limit:  1,
	})
	if err != nil {
		return core.Money{}, err
	}
	if len(later) > 0 {
		return core.Money{}, core.Invalid("date", "bill %q was already paid on %s", b.Name, later[0].Date)
	}

	h, err := tx.HistoryAtOrBefore(ctx, core.BillEntity, b.ID, date)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// appendHistory moves the seed before the payment.
		return b.StartingBalance, nil
	case err != nil:
		return core.Money{}, err
	}
	return h.RunningTotal, nil
}

// TransferRequest moves money between two savings accounts.
type TransferRequest struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        core.Money
	Date          core.Date
	WeekNumber    int64 // zero selects the current week
	Description   string
}

// Transfer records a withdrawal from one account and a saving into the
// other, linked by a shared group id. Both legs commit or neither does.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (core.Transaction, core.Transaction, error) {
	if req.FromAccountID == 0 || req.ToAccountID == 0 {
		return core.Transaction{}, core.Transaction{}, core.Invalid("account_id", "both accounts are required")
	}
	if req.FromAccountID == req.ToAccountID {
		return core.Transaction{}, core.Transaction{}, core.Invalid("account_id", "cannot transfer to the same account")
	}

	group := uuid.NewString()
	var out, in core.Transaction
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		week, err := s.resolveWeek(ctx, tx, req.WeekNumber)
		if err != nil {
			return err
		}
		from, err := tx.GetAccount(ctx, req.FromAccountID)
		if err != nil {
			return err
		}
		to, err := tx.GetAccount(ctx, req.ToAccountID)
		if err != nil {
			return err
		}
		desc := req.Description
		if desc == "" {
			desc = core.Describe("Transfer %s to %s", from.Name, to.Name)
		}

		out, err = record(ctx, tx, core.NewTransaction{
			Type:                 core.Withdrawal,
			Amount:               req.Amount,
			Date:                 req.Date,
			Description:          desc,
			WeekNumber:           week,
			AccountID:            from.ID,
			ExcludeFromAnalytics: true,
			TransferGroupID:      group,
		})
		if err != nil {
			return err
		}
		in, err = record(ctx, tx, core.NewTransaction{
			Type:                 core.Saving,
			Amount:               req.Amount,
			Date:                 req.Date,
			Description:          desc,
			WeekNumber:           week,
			AccountID:            to.ID,
			ExcludeFromAnalytics: true,
			TransferGroupID:      group,
		})
		return err
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("transfer: %w", err)
	}

	s.recorded(ctx, out)
	s.recorded(ctx, in)
	return out, in, nil
}

// PayBill records a bill_pay against the bill. The bill's balance resets
// to zero and its last payment fields are updated.
func (s *LedgerService) PayBill(ctx context.Context, billID int64, amount core.Money, date core.Date, weekNumber int64) (core.Transaction, error) {
	var t core.Transaction
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		week, err := s.resolveWeek(ctx, tx, weekNumber)
		if err != nil {
			return err
		}
		bill, err := tx.GetBill(ctx, billID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Invalid("bill_id", "bill %d does not exist", billID)
			}
			return err
		}
		t, err = record(ctx, tx, core.NewTransaction{
			Type:        core.BillPay,
			Amount:      amount,
			Date:        date,
			Description: core.Describe("Payment for %s", bill.Name),
			WeekNumber:  week,
			BillID:      bill.ID,
		})
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("pay bill %d: %w", billID, err)
	}

	s.recorded(ctx, t)
	return t, nil
}

// resolveWeek returns n, or the current week's number when n is zero.
func (s *LedgerService) resolveWeek(ctx context.Context, tx *storage.SQLiteRepository, n int64) (int64, error) {
	if n != 0 {
		return n, nil
	}
	w, err := tx.GetCurrentWeek(ctx, s.today())
	if errors.Is(err, core.ErrNotFound) {
		return 0, core.Invalid("week_number", "no weeks exist yet; process a paycheck first")
	}
	if err != nil {
		return 0, err
	}
	return w.Number, nil
}
