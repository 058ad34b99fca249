package storage

import (
	"context"
	"fmt"

	"budget/internal/core"
)

func toWeek(w Week) core.Week {
	return core.Week{
		Number:          w.WeekNumber,
		StartDate:       parseDate(w.StartDate),
		EndDate:         parseDate(w.EndDate),
		RunningTotal:    core.Money{Cents: w.RunningTotalCents},
		RolloverApplied: w.RolloverApplied,
	}
}

func toWeeks(rows []Week) []core.Week {
	out := make([]core.Week, len(rows))
	for i, w := range rows {
		out[i] = toWeek(w)
	}
	return out
}

func toTransaction(t Transaction) core.Transaction {
	return core.Transaction{
		ID:                 t.ID,
		Type:               core.TransactionType(t.TransactionType),
		Amount:             core.Money{Cents: t.AmountCents},
		Date:               parseDate(t.Date),
		Description:        t.Description,
		WeekNumber:         t.WeekNumber,
		Category:           t.Category.String,
		AccountID:          t.AccountID.Int64,
		BillID:             t.BillID.Int64,
		IncludeInAnalytics: t.IncludeInAnalytics,
		BalanceDelta:       core.Money{Cents: t.BalanceDeltaCents},
		WeekAdjustment:     core.Money{Cents: t.WeekAdjustmentCents},
		WeekAdjustmentWeek: t.WeekAdjustmentWeek.Int64,
		TransferGroupID:    t.TransferGroupID.String,
	}
}

func toTransactions(rows []Transaction) []core.Transaction {
	out := make([]core.Transaction, len(rows))
	for i, t := range rows {
		out[i] = toTransaction(t)
	}
	return out
}

func toHistory(h AccountHistory) core.HistoryEntry {
	return core.HistoryEntry{
		ID:            h.ID,
		TransactionID: h.TransactionID.Int64,
		EntityID:      h.AccountID,
		EntityType:    core.EntityType(h.AccountType),
		ChangeAmount:  core.Money{Cents: h.ChangeAmountCents},
		RunningTotal:  core.Money{Cents: h.RunningTotalCents},
		Date:          parseDate(h.TransactionDate),
		Description:   h.Description,
	}
}

func toHistories(rows []AccountHistory) []core.HistoryEntry {
	out := make([]core.HistoryEntry, len(rows))
	for i, h := range rows {
		out[i] = toHistory(h)
	}
	return out
}

func (r *SQLiteRepository) CreateWeek(ctx context.Context, w core.Week) (core.Week, error) {
	row, err := r.queries.CreateWeek(ctx, CreateWeekParams{
		WeekNumber:        w.Number,
		StartDate:         formatDate(w.StartDate),
		EndDate:           formatDate(w.EndDate),
		RunningTotalCents: w.RunningTotal.Cents,
	})
	if err != nil {
		return core.Week{}, wrap(fmt.Sprintf("create week %d", w.Number), err)
	}
	return toWeek(row), nil
}

func (r *SQLiteRepository) GetWeek(ctx context.Context, n int64) (core.Week, error) {
	row, err := r.queries.GetWeek(ctx, n)
	if err != nil {
		return core.Week{}, wrap(fmt.Sprintf("get week %d", n), err)
	}
	return toWeek(row), nil
}

// GetLastWeek returns the week with the highest number, or ErrNotFound on
// an empty ledger.
func (r *SQLiteRepository) GetLastWeek(ctx context.Context) (core.Week, error) {
	row, err := r.queries.GetLastWeek(ctx)
	if err != nil {
		return core.Week{}, wrap("get last week", err)
	}
	return toWeek(row), nil
}

func (r *SQLiteRepository) ListWeeks(ctx context.Context) ([]core.Week, error) {
	rows, err := r.queries.ListWeeks(ctx)
	if err != nil {
		return nil, wrap("list weeks", err)
	}
	return toWeeks(rows), nil
}

// GetCurrentWeek resolves the single current week: the one containing
// today, else the last week when today is past every range, else the first.
func (r *SQLiteRepository) GetCurrentWeek(ctx context.Context, today core.Date) (core.Week, error) {
	row, err := r.queries.GetWeekContaining(ctx, formatDate(today))
	if err == nil {
		return toWeek(row), nil
	}
	if err = wrap("get week containing date", err); !isNotFound(err) {
		return core.Week{}, err
	}

	last, err := r.GetLastWeek(ctx)
	if err != nil {
		return core.Week{}, err
	}
	if today.After(last.EndDate) {
		return last, nil
	}

	first, err := r.queries.GetFirstWeek(ctx)
	if err != nil {
		return core.Week{}, wrap("get first week", err)
	}
	return toWeek(first), nil
}

func (r *SQLiteRepository) SetWeekRunningTotal(ctx context.Context, n int64, total core.Money) error {
	res, err := r.queries.UpdateWeekRunningTotal(ctx, UpdateWeekRunningTotalParams{RunningTotalCents: total.Cents, WeekNumber: n})
	return mustAffect(fmt.Sprintf("update week %d running total", n), res, err)
}

// MarkRolloverApplied sets the flag and reports whether this call flipped it.
func (r *SQLiteRepository) MarkRolloverApplied(ctx context.Context, n int64) (bool, error) {
	res, err := r.queries.MarkRolloverApplied(ctx, n)
	if err != nil {
		return false, wrap(fmt.Sprintf("mark week %d rolled over", n), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrap(fmt.Sprintf("mark week %d rolled over", n), err)
	}
	return affected == 1, nil
}

// ListOpenWeeksEndedBefore returns un-rolled weeks whose end date is before
// date, oldest first.
func (r *SQLiteRepository) ListOpenWeeksEndedBefore(ctx context.Context, date core.Date) ([]core.Week, error) {
	rows, err := r.queries.ListOpenWeeksEndedBefore(ctx, formatDate(date))
	if err != nil {
		return nil, wrap("list open weeks", err)
	}
	return toWeeks(rows), nil
}

// CreateTransaction stores t as given. Signs and balance_delta are the
// caller's responsibility.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var category string
	if t.Type == core.Spending {
		category = t.Category
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		TransactionType:    string(t.Type),
		AmountCents:        t.Amount.Cents,
		Date:               formatDate(t.Date),
		Description:        t.Description,
		WeekNumber:         t.WeekNumber,
		Category:           nullString(category),
		AccountID:          nullID(t.AccountID),
		BillID:             nullID(t.BillID),
		IncludeInAnalytics: t.IncludeInAnalytics,
		BalanceDeltaCents:  t.BalanceDelta.Cents,
		TransferGroupID:    nullString(t.TransferGroupID),
	})
	if err != nil {
		return core.Transaction{}, wrap("create transaction", err)
	}
	return toTransaction(row), nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, wrap(fmt.Sprintf("get transaction %d", id), err)
	}
	return toTransaction(row), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		WeekNumber:      f.WeekNumber,
		AccountID:       f.AccountID,
		BillID:          f.BillID,
		TransactionType: string(f.Type),
		FromDate:        formatDate(f.From),
		ToDate:          formatDate(f.To),
		AnalyticsOnly:   f.AnalyticsOnly,
		Limit:           int64(f.Limit),
	})
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	return toTransactions(rows), nil
}

func (r *SQLiteRepository) ListTransferGroup(ctx context.Context, groupID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByGroup(ctx, groupID)
	if err != nil {
		return nil, wrap("list transfer group", err)
	}
	return toTransactions(rows), nil
}

// UpdateTransactionAmount rewrites the amount together with its resolved
// bucket and week effects.
func (r *SQLiteRepository) UpdateTransactionAmount(ctx context.Context, t core.Transaction) error {
	res, err := r.queries.UpdateTransactionAmount(ctx, UpdateTransactionAmountParams{
		AmountCents:         t.Amount.Cents,
		BalanceDeltaCents:   t.BalanceDelta.Cents,
		WeekAdjustmentCents: t.WeekAdjustment.Cents,
		WeekAdjustmentWeek:  nullID(t.WeekAdjustmentWeek),
		ID:                  t.ID,
	})
	return mustAffect(fmt.Sprintf("update transaction %d", t.ID), res, err)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.queries.DeleteTransaction(ctx, id)
	return mustAffect(fmt.Sprintf("delete transaction %d", id), res, err)
}

// SumWeekSpending totals spending in week n, skipping rows whose
// description contains marker (case-insensitive). An empty marker skips
// nothing.
func (r *SQLiteRepository) SumWeekSpending(ctx context.Context, n int64, marker string) (core.Money, error) {
	sum, err := r.queries.SumWeekSpending(ctx, n, marker)
	if err != nil {
		return core.Money{}, wrap("sum week spending", err)
	}
	return core.Money{Cents: sum}, nil
}

// SumWeekRollovers is the signed total of rollover transactions into week n.
func (r *SQLiteRepository) SumWeekRollovers(ctx context.Context, n int64) (core.Money, error) {
	sum, err := r.queries.SumWeekRollovers(ctx, n)
	if err != nil {
		return core.Money{}, wrap("sum week rollovers", err)
	}
	return core.Money{Cents: sum}, nil
}

func (r *SQLiteRepository) WeekSpendingByCategory(ctx context.Context, n int64, marker string) ([]core.CategoryAmount, error) {
	rows, err := r.queries.WeekSpendingByCategory(ctx, n, marker)
	if err != nil {
		return nil, wrap("week spending by category", err)
	}
	out := make([]core.CategoryAmount, len(rows))
	for i, cs := range rows {
		out[i] = core.CategoryAmount{Name: cs.Category, Amount: core.Money{Cents: cs.TotalAmount}}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateHistory(ctx context.Context, h core.HistoryEntry) (core.HistoryEntry, error) {
	row, err := r.queries.CreateHistory(ctx, CreateHistoryParams{
		TransactionID:     nullID(h.TransactionID),
		AccountID:         h.EntityID,
		AccountType:       string(h.EntityType),
		ChangeAmountCents: h.ChangeAmount.Cents,
		RunningTotalCents: h.RunningTotal.Cents,
		TransactionDate:   formatDate(h.Date),
		Description:       h.Description,
	})
	if err != nil {
		return core.HistoryEntry{}, wrap("create history", err)
	}
	return toHistory(row), nil
}

// ListHistory returns the bucket's rows ordered by (date, id).
func (r *SQLiteRepository) ListHistory(ctx context.Context, entity core.EntityType, id int64) ([]core.HistoryEntry, error) {
	rows, err := r.queries.ListHistory(ctx, ListHistoryParams{AccountType: string(entity), AccountID: id})
	if err != nil {
		return nil, wrap("list history", err)
	}
	return toHistories(rows), nil
}

// HistoryAtOrBefore returns the last row dated on or before date.
func (r *SQLiteRepository) HistoryAtOrBefore(ctx context.Context, entity core.EntityType, id int64, date core.Date) (core.HistoryEntry, error) {
	row, err := r.queries.GetHistoryAtOrBefore(ctx, GetHistoryAtOrBeforeParams{
		AccountType:     string(entity),
		AccountID:       id,
		TransactionDate: formatDate(date),
	})
	if err != nil {
		return core.HistoryEntry{}, wrap("get history at date", err)
	}
	return toHistory(row), nil
}

func (r *SQLiteRepository) HistoryForTransaction(ctx context.Context, transactionID int64) (core.HistoryEntry, error) {
	row, err := r.queries.GetHistoryByTransaction(ctx, transactionID)
	if err != nil {
		return core.HistoryEntry{}, wrap(fmt.Sprintf("get history for transaction %d", transactionID), err)
	}
	return toHistory(row), nil
}

// UpdateHistory rewrites the change, running total and date of a row.
func (r *SQLiteRepository) UpdateHistory(ctx context.Context, h core.HistoryEntry) error {
	err := r.queries.UpdateHistoryRow(ctx, UpdateHistoryRowParams{
		ChangeAmountCents: h.ChangeAmount.Cents,
		RunningTotalCents: h.RunningTotal.Cents,
		TransactionDate:   formatDate(h.Date),
		ID:                h.ID,
	})
	return wrap(fmt.Sprintf("update history %d", h.ID), err)
}

func (r *SQLiteRepository) DeleteHistory(ctx context.Context, id int64) error {
	return wrap(fmt.Sprintf("delete history %d", id), r.queries.DeleteHistory(ctx, id))
}

// ListOrphanHistory returns rows that point at a transaction which no
// longer exists or references a different bucket.
func (r *SQLiteRepository) ListOrphanHistory(ctx context.Context, entity core.EntityType, id int64) ([]core.HistoryEntry, error) {
	rows, err := r.queries.ListOrphanHistory(ctx, ListHistoryParams{AccountType: string(entity), AccountID: id})
	if err != nil {
		return nil, wrap("list orphan history", err)
	}
	return toHistories(rows), nil
}
