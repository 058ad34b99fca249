package storage

import (
	"context"
	"database/sql"
)

const transactionColumns = `id, transaction_type, amount_cents, date, description, week_number, category,
	account_id, bill_id, include_in_analytics, balance_delta_cents, week_adjustment_cents, week_adjustment_week, transfer_group_id`

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.TransactionType,
		&i.AmountCents,
		&i.Date,
		&i.Description,
		&i.WeekNumber,
		&i.Category,
		&i.AccountID,
		&i.BillID,
		&i.IncludeInAnalytics,
		&i.BalanceDeltaCents,
		&i.WeekAdjustmentCents,
		&i.WeekAdjustmentWeek,
		&i.TransferGroupID,
	)
	return i, err
}

func collectTransactions(rows *sql.Rows, err error) ([]Transaction, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (transaction_type, amount_cents, date, description, week_number, category,
	account_id, bill_id, include_in_analytics, balance_delta_cents, week_adjustment_cents, transfer_group_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	TransactionType    string
	AmountCents        int64
	Date               string
	Description        string
	WeekNumber         int64
	Category           sql.NullString
	AccountID          sql.NullInt64
	BillID             sql.NullInt64
	IncludeInAnalytics bool
	BalanceDeltaCents  int64
	TransferGroupID    sql.NullString
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.TransactionType,
		arg.AmountCents,
		arg.Date,
		arg.Description,
		arg.WeekNumber,
		arg.Category,
		arg.AccountID,
		arg.BillID,
		arg.IncludeInAnalytics,
		arg.BalanceDeltaCents,
		arg.TransferGroupID,
	)
	return scanTransaction(row)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

// Zero values disable a filter.
const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE (?1 = 0 OR week_number = ?1)
  AND (?2 = 0 OR account_id = ?2)
  AND (?3 = 0 OR bill_id = ?3)
  AND (?4 = '' OR transaction_type = ?4)
  AND (?5 = '' OR date >= ?5)
  AND (?6 = '' OR date <= ?6)
  AND (?7 = 0 OR include_in_analytics = 1)
ORDER BY date, id
LIMIT CASE WHEN ?8 > 0 THEN ?8 ELSE -1 END`

type ListTransactionsParams struct {
	WeekNumber      int64
	AccountID       int64
	BillID          int64
	TransactionType string
	FromDate        string
	ToDate          string
	AnalyticsOnly   bool
	Limit           int64
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	return collectTransactions(q.db.QueryContext(ctx, listTransactions,
		arg.WeekNumber,
		arg.AccountID,
		arg.BillID,
		arg.TransactionType,
		arg.FromDate,
		arg.ToDate,
		arg.AnalyticsOnly,
		arg.Limit,
	))
}

const listTransactionsByGroup = `-- name: ListTransactionsByGroup :many
SELECT ` + transactionColumns + ` FROM transactions WHERE transfer_group_id = ? ORDER BY id`

func (q *Queries) ListTransactionsByGroup(ctx context.Context, groupID string) ([]Transaction, error) {
	return collectTransactions(q.db.QueryContext(ctx, listTransactionsByGroup, groupID))
}

const updateTransactionAmount = `-- name: UpdateTransactionAmount :execresult
UPDATE transactions SET amount_cents = ?, balance_delta_cents = ?, week_adjustment_cents = ?, week_adjustment_week = ?
WHERE id = ?`

type UpdateTransactionAmountParams struct {
	AmountCents         int64
	BalanceDeltaCents   int64
	WeekAdjustmentCents int64
	WeekAdjustmentWeek  sql.NullInt64
	ID                  int64
}

func (q *Queries) UpdateTransactionAmount(ctx context.Context, arg UpdateTransactionAmountParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateTransactionAmount,
		arg.AmountCents,
		arg.BalanceDeltaCents,
		arg.WeekAdjustmentCents,
		arg.WeekAdjustmentWeek,
		arg.ID,
	)
}

const deleteTransaction = `-- name: DeleteTransaction :execresult
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteTransaction, id)
}

// The marker comparison is a case-insensitive substring match.
const sumWeekSpending = `-- name: SumWeekSpending :one
SELECT CAST(COALESCE(SUM(amount_cents), 0) AS INTEGER) FROM transactions
WHERE week_number = ?1 AND transaction_type = 'spending'
  AND (?2 = '' OR instr(lower(description), lower(?2)) = 0)`

func (q *Queries) SumWeekSpending(ctx context.Context, weekNumber int64, marker string) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumWeekSpending, weekNumber, marker).Scan(&sum)
	return sum, err
}

const sumWeekRollovers = `-- name: SumWeekRollovers :one
SELECT CAST(COALESCE(SUM(amount_cents), 0) AS INTEGER) FROM transactions
WHERE week_number = ? AND transaction_type = 'rollover'`

func (q *Queries) SumWeekRollovers(ctx context.Context, weekNumber int64) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumWeekRollovers, weekNumber).Scan(&sum)
	return sum, err
}

const weekSpendingByCategory = `-- name: WeekSpendingByCategory :many
SELECT COALESCE(category, ''), CAST(SUM(amount_cents) AS INTEGER) FROM transactions
WHERE week_number = ?1 AND transaction_type = 'spending'
  AND (?2 = '' OR instr(lower(description), lower(?2)) = 0)
GROUP BY category ORDER BY 2 DESC, 1`

type WeekSpendingByCategoryRow struct {
	Category    string
	TotalAmount int64
}

func (q *Queries) WeekSpendingByCategory(ctx context.Context, weekNumber int64, marker string) ([]WeekSpendingByCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, weekSpendingByCategory, weekNumber, marker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WeekSpendingByCategoryRow
	for rows.Next() {
		var i WeekSpendingByCategoryRow
		if err := rows.Scan(&i.Category, &i.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
