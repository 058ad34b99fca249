package storage

import (
	"context"
	"database/sql"
)

const accountColumns = `id, name, starting_balance_cents, goal_amount_cents, auto_save_amount, is_default_save, running_total_cents`

func scanAccount(row interface{ Scan(...interface{}) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.StartingBalanceCents,
		&i.GoalAmountCents,
		&i.AutoSaveAmount,
		&i.IsDefaultSave,
		&i.RunningTotalCents,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (name, starting_balance_cents, goal_amount_cents, auto_save_amount, is_default_save, running_total_cents)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	Name                 string
	StartingBalanceCents int64
	GoalAmountCents      int64
	AutoSaveAmount       string
	IsDefaultSave        bool
	RunningTotalCents    int64
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		arg.Name,
		arg.StartingBalanceCents,
		arg.GoalAmountCents,
		arg.AutoSaveAmount,
		arg.IsDefaultSave,
		arg.RunningTotalCents,
	)
	return scanAccount(row)
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const getAccountByName = `-- name: GetAccountByName :one
SELECT ` + accountColumns + ` FROM accounts WHERE name = ?`

func (q *Queries) GetAccountByName(ctx context.Context, name string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByName, name))
}

const getDefaultSaveAccount = `-- name: GetDefaultSaveAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE is_default_save = 1`

func (q *Queries) GetDefaultSaveAccount(ctx context.Context) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getDefaultSaveAccount))
}

const listAccounts = `-- name: ListAccounts :many
SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		i, err := scanAccount(rows)
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

const updateAccountRunningTotal = `-- name: UpdateAccountRunningTotal :execresult
UPDATE accounts SET running_total_cents = ? WHERE id = ?`

type UpdateAccountRunningTotalParams struct {
	RunningTotalCents int64
	ID                int64
}

func (q *Queries) UpdateAccountRunningTotal(ctx context.Context, arg UpdateAccountRunningTotalParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateAccountRunningTotal, arg.RunningTotalCents, arg.ID)
}

const clearDefaultSave = `-- name: ClearDefaultSave :exec
UPDATE accounts SET is_default_save = 0 WHERE is_default_save = 1`

func (q *Queries) ClearDefaultSave(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearDefaultSave)
	return err
}

const sumAccountBalanceDelta = `-- name: SumAccountBalanceDelta :one
SELECT CAST(COALESCE(SUM(balance_delta_cents), 0) AS INTEGER) FROM transactions WHERE account_id = ?`

func (q *Queries) SumAccountBalanceDelta(ctx context.Context, accountID int64) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumAccountBalanceDelta, accountID).Scan(&sum)
	return sum, err
}
