package storage

import (
	"context"
	"database/sql"
)

const reimbursementColumns = `id, amount_cents, date, state, notes, category, location, submitted_date, reimbursed_date`

func scanReimbursement(row interface{ Scan(...interface{}) error }) (Reimbursement, error) {
	var i Reimbursement
	err := row.Scan(
		&i.ID,
		&i.AmountCents,
		&i.Date,
		&i.State,
		&i.Notes,
		&i.Category,
		&i.Location,
		&i.SubmittedDate,
		&i.ReimbursedDate,
	)
	return i, err
}

const createReimbursement = `-- name: CreateReimbursement :one
INSERT INTO reimbursements (amount_cents, date, state, notes, category, location, submitted_date, reimbursed_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reimbursementColumns

type CreateReimbursementParams struct {
	AmountCents    int64
	Date           string
	State          string
	Notes          string
	Category       string
	Location       string
	SubmittedDate  sql.NullString
	ReimbursedDate sql.NullString
}

func (q *Queries) CreateReimbursement(ctx context.Context, arg CreateReimbursementParams) (Reimbursement, error) {
	row := q.db.QueryRowContext(ctx, createReimbursement,
		arg.AmountCents,
		arg.Date,
		arg.State,
		arg.Notes,
		arg.Category,
		arg.Location,
		arg.SubmittedDate,
		arg.ReimbursedDate,
	)
	return scanReimbursement(row)
}

const getReimbursement = `-- name: GetReimbursement :one
SELECT ` + reimbursementColumns + ` FROM reimbursements WHERE id = ?`

func (q *Queries) GetReimbursement(ctx context.Context, id int64) (Reimbursement, error) {
	return scanReimbursement(q.db.QueryRowContext(ctx, getReimbursement, id))
}

const listReimbursements = `-- name: ListReimbursements :many
SELECT ` + reimbursementColumns + ` FROM reimbursements
WHERE (?1 = '' OR state = ?1)
ORDER BY date DESC, id DESC`

func (q *Queries) ListReimbursements(ctx context.Context, state string) ([]Reimbursement, error) {
	rows, err := q.db.QueryContext(ctx, listReimbursements, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Reimbursement
	for rows.Next() {
		i, err := scanReimbursement(rows)
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

const updateReimbursementState = `-- name: UpdateReimbursementState :execresult
UPDATE reimbursements
SET state = ?, submitted_date = ?, reimbursed_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateReimbursementStateParams struct {
	State          string
	SubmittedDate  sql.NullString
	ReimbursedDate sql.NullString
	ID             int64
}

func (q *Queries) UpdateReimbursementState(ctx context.Context, arg UpdateReimbursementStateParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateReimbursementState, arg.State, arg.SubmittedDate, arg.ReimbursedDate, arg.ID)
}

const deleteReimbursement = `-- name: DeleteReimbursement :execresult
DELETE FROM reimbursements WHERE id = ?`

func (q *Queries) DeleteReimbursement(ctx context.Context, id int64) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteReimbursement, id)
}

const reimbursementTotals = `-- name: ReimbursementTotals :one
SELECT
	CAST(COALESCE(SUM(CASE WHEN state = 'pending' THEN amount_cents END), 0) AS INTEGER),
	CAST(COALESCE(SUM(CASE WHEN state IN ('submitted', 'partial') THEN amount_cents END), 0) AS INTEGER),
	CAST(COALESCE(SUM(CASE WHEN state = 'reimbursed' THEN amount_cents END), 0) AS INTEGER)
FROM reimbursements`

type ReimbursementTotalsRow struct {
	PendingCents     int64
	OutstandingCents int64
	ReimbursedCents  int64
}

func (q *Queries) ReimbursementTotals(ctx context.Context) (ReimbursementTotalsRow, error) {
	var i ReimbursementTotalsRow
	err := q.db.QueryRowContext(ctx, reimbursementTotals).Scan(&i.PendingCents, &i.OutstandingCents, &i.ReimbursedCents)
	return i, err
}
