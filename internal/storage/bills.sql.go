package storage

import (
	"context"
	"database/sql"
)

const billColumns = `id, name, bill_type, payment_frequency, typical_amount_cents, is_variable, amount_to_save,
	starting_balance_cents, running_total_cents, last_payment_date, last_payment_amount_cents, notes`

func scanBill(row interface{ Scan(...interface{}) error }) (Bill, error) {
	var i Bill
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.BillType,
		&i.PaymentFrequency,
		&i.TypicalAmountCents,
		&i.IsVariable,
		&i.AmountToSave,
		&i.StartingBalanceCents,
		&i.RunningTotalCents,
		&i.LastPaymentDate,
		&i.LastPaymentAmountCents,
		&i.Notes,
	)
	return i, err
}

const createBill = `-- name: CreateBill :one
INSERT INTO bills (name, bill_type, payment_frequency, typical_amount_cents, is_variable, amount_to_save,
	starting_balance_cents, running_total_cents, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + billColumns

type CreateBillParams struct {
	Name                 string
	BillType             string
	PaymentFrequency     string
	TypicalAmountCents   int64
	IsVariable           bool
	AmountToSave         string
	StartingBalanceCents int64
	RunningTotalCents    int64
	Notes                string
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	row := q.db.QueryRowContext(ctx, createBill,
		arg.Name,
		arg.BillType,
		arg.PaymentFrequency,
		arg.TypicalAmountCents,
		arg.IsVariable,
		arg.AmountToSave,
		arg.StartingBalanceCents,
		arg.RunningTotalCents,
		arg.Notes,
	)
	return scanBill(row)
}

const getBill = `-- name: GetBill :one
SELECT ` + billColumns + ` FROM bills WHERE id = ?`

func (q *Queries) GetBill(ctx context.Context, id int64) (Bill, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBill, id))
}

const getBillByName = `-- name: GetBillByName :one
SELECT ` + billColumns + ` FROM bills WHERE name = ?`

func (q *Queries) GetBillByName(ctx context.Context, name string) (Bill, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBillByName, name))
}

const listBills = `-- name: ListBills :many
SELECT ` + billColumns + ` FROM bills ORDER BY id`

func (q *Queries) ListBills(ctx context.Context) ([]Bill, error) {
	rows, err := q.db.QueryContext(ctx, listBills)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bill
	for rows.Next() {
		i, err := scanBill(rows)
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

const updateBillRunningTotal = `-- name: UpdateBillRunningTotal :execresult
UPDATE bills SET running_total_cents = ? WHERE id = ?`

type UpdateBillRunningTotalParams struct {
	RunningTotalCents int64
	ID                int64
}

func (q *Queries) UpdateBillRunningTotal(ctx context.Context, arg UpdateBillRunningTotalParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateBillRunningTotal, arg.RunningTotalCents, arg.ID)
}

const updateBillLastPayment = `-- name: UpdateBillLastPayment :exec
UPDATE bills SET last_payment_date = ?, last_payment_amount_cents = ? WHERE id = ?`

type UpdateBillLastPaymentParams struct {
	LastPaymentDate        sql.NullString
	LastPaymentAmountCents int64
	ID                     int64
}

func (q *Queries) UpdateBillLastPayment(ctx context.Context, arg UpdateBillLastPaymentParams) error {
	_, err := q.db.ExecContext(ctx, updateBillLastPayment, arg.LastPaymentDate, arg.LastPaymentAmountCents, arg.ID)
	return err
}

const sumBillBalanceDelta = `-- name: SumBillBalanceDelta :one
SELECT CAST(COALESCE(SUM(balance_delta_cents), 0) AS INTEGER) FROM transactions WHERE bill_id = ?`

func (q *Queries) SumBillBalanceDelta(ctx context.Context, billID int64) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumBillBalanceDelta, billID).Scan(&sum)
	return sum, err
}
