package storage

import (
	"context"
	"database/sql"
)

const historyColumns = `id, transaction_id, account_id, account_type, change_amount_cents, running_total_cents, transaction_date, description`

func scanHistory(row interface{ Scan(...interface{}) error }) (AccountHistory, error) {
	var i AccountHistory
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.AccountID,
		&i.AccountType,
		&i.ChangeAmountCents,
		&i.RunningTotalCents,
		&i.TransactionDate,
		&i.Description,
	)
	return i, err
}

func collectHistory(rows *sql.Rows, err error) ([]AccountHistory, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountHistory
	for rows.Next() {
		i, err := scanHistory(rows)
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

const createHistory = `-- name: CreateHistory :one
INSERT INTO account_history (transaction_id, account_id, account_type, change_amount_cents, running_total_cents, transaction_date, description)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + historyColumns

type CreateHistoryParams struct {
	TransactionID     sql.NullInt64
	AccountID         int64
	AccountType       string
	ChangeAmountCents int64
	RunningTotalCents int64
	TransactionDate   string
	Description       string
}

func (q *Queries) CreateHistory(ctx context.Context, arg CreateHistoryParams) (AccountHistory, error) {
	row := q.db.QueryRowContext(ctx, createHistory,
		arg.TransactionID,
		arg.AccountID,
		arg.AccountType,
		arg.ChangeAmountCents,
		arg.RunningTotalCents,
		arg.TransactionDate,
		arg.Description,
	)
	return scanHistory(row)
}

const listHistory = `-- name: ListHistory :many
SELECT ` + historyColumns + ` FROM account_history
WHERE account_type = ? AND account_id = ?
ORDER BY transaction_date, id`

type ListHistoryParams struct {
	AccountType string
	AccountID   int64
}

func (q *Queries) ListHistory(ctx context.Context, arg ListHistoryParams) ([]AccountHistory, error) {
	return collectHistory(q.db.QueryContext(ctx, listHistory, arg.AccountType, arg.AccountID))
}

const getHistoryAtOrBefore = `-- name: GetHistoryAtOrBefore :one
SELECT ` + historyColumns + ` FROM account_history
WHERE account_type = ? AND account_id = ? AND transaction_date <= ?
ORDER BY transaction_date DESC, id DESC LIMIT 1`

type GetHistoryAtOrBeforeParams struct {
	AccountType     string
	AccountID       int64
	TransactionDate string
}

func (q *Queries) GetHistoryAtOrBefore(ctx context.Context, arg GetHistoryAtOrBeforeParams) (AccountHistory, error) {
	return scanHistory(q.db.QueryRowContext(ctx, getHistoryAtOrBefore, arg.AccountType, arg.AccountID, arg.TransactionDate))
}

const getHistoryByTransaction = `-- name: GetHistoryByTransaction :one
SELECT ` + historyColumns + ` FROM account_history WHERE transaction_id = ?`

func (q *Queries) GetHistoryByTransaction(ctx context.Context, transactionID int64) (AccountHistory, error) {
	return scanHistory(q.db.QueryRowContext(ctx, getHistoryByTransaction, transactionID))
}

const updateHistoryRow = `-- name: UpdateHistoryRow :exec
UPDATE account_history SET change_amount_cents = ?, running_total_cents = ?, transaction_date = ? WHERE id = ?`

type UpdateHistoryRowParams struct {
	ChangeAmountCents int64
	RunningTotalCents int64
	TransactionDate   string
	ID                int64
}

func (q *Queries) UpdateHistoryRow(ctx context.Context, arg UpdateHistoryRowParams) error {
	_, err := q.db.ExecContext(ctx, updateHistoryRow,
		arg.ChangeAmountCents,
		arg.RunningTotalCents,
		arg.TransactionDate,
		arg.ID,
	)
	return err
}

const deleteHistory = `-- name: DeleteHistory :exec
DELETE FROM account_history WHERE id = ?`

func (q *Queries) DeleteHistory(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteHistory, id)
	return err
}

// Rows pointing at a transaction that is gone or belongs to another bucket.
const listOrphanHistory = `-- name: ListOrphanHistory :many
SELECT h.id, h.transaction_id, h.account_id, h.account_type, h.change_amount_cents,
	h.running_total_cents, h.transaction_date, h.description
FROM account_history h
LEFT JOIN transactions t ON t.id = h.transaction_id
WHERE h.account_type = ?1 AND h.account_id = ?2 AND h.transaction_id IS NOT NULL
  AND (t.id IS NULL
    OR (?1 = 'savings' AND (t.account_id IS NULL OR t.account_id != ?2))
    OR (?1 = 'bill' AND (t.bill_id IS NULL OR t.bill_id != ?2)))
ORDER BY h.id`

func (q *Queries) ListOrphanHistory(ctx context.Context, arg ListHistoryParams) ([]AccountHistory, error) {
	return collectHistory(q.db.QueryContext(ctx, listOrphanHistory, arg.AccountType, arg.AccountID))
}
