package storage

import (
	"context"
	"database/sql"
)

const weekColumns = `week_number, start_date, end_date, running_total_cents, rollover_applied`

func scanWeek(row interface{ Scan(...interface{}) error }) (Week, error) {
	var i Week
	err := row.Scan(
		&i.WeekNumber,
		&i.StartDate,
		&i.EndDate,
		&i.RunningTotalCents,
		&i.RolloverApplied,
	)
	return i, err
}

func collectWeeks(rows *sql.Rows, err error) ([]Week, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Week
	for rows.Next() {
		i, err := scanWeek(rows)
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

const createWeek = `-- name: CreateWeek :one
INSERT INTO weeks (week_number, start_date, end_date, running_total_cents, rollover_applied)
VALUES (?, ?, ?, ?, 0)
RETURNING ` + weekColumns

type CreateWeekParams struct {
	WeekNumber        int64
	StartDate         string
	EndDate           string
	RunningTotalCents int64
}

func (q *Queries) CreateWeek(ctx context.Context, arg CreateWeekParams) (Week, error) {
	row := q.db.QueryRowContext(ctx, createWeek, arg.WeekNumber, arg.StartDate, arg.EndDate, arg.RunningTotalCents)
	return scanWeek(row)
}

const getWeek = `-- name: GetWeek :one
SELECT ` + weekColumns + ` FROM weeks WHERE week_number = ?`

func (q *Queries) GetWeek(ctx context.Context, weekNumber int64) (Week, error) {
	return scanWeek(q.db.QueryRowContext(ctx, getWeek, weekNumber))
}

const getLastWeek = `-- name: GetLastWeek :one
SELECT ` + weekColumns + ` FROM weeks ORDER BY week_number DESC LIMIT 1`

func (q *Queries) GetLastWeek(ctx context.Context) (Week, error) {
	return scanWeek(q.db.QueryRowContext(ctx, getLastWeek))
}

const getFirstWeek = `-- name: GetFirstWeek :one
SELECT ` + weekColumns + ` FROM weeks ORDER BY week_number ASC LIMIT 1`

func (q *Queries) GetFirstWeek(ctx context.Context) (Week, error) {
	return scanWeek(q.db.QueryRowContext(ctx, getFirstWeek))
}

const getWeekContaining = `-- name: GetWeekContaining :one
SELECT ` + weekColumns + ` FROM weeks WHERE start_date <= ?1 AND end_date >= ?1
ORDER BY week_number DESC LIMIT 1`

func (q *Queries) GetWeekContaining(ctx context.Context, date string) (Week, error) {
	return scanWeek(q.db.QueryRowContext(ctx, getWeekContaining, date))
}

const listWeeks = `-- name: ListWeeks :many
SELECT ` + weekColumns + ` FROM weeks ORDER BY week_number`

func (q *Queries) ListWeeks(ctx context.Context) ([]Week, error) {
	return collectWeeks(q.db.QueryContext(ctx, listWeeks))
}

const listOpenWeeksEndedBefore = `-- name: ListOpenWeeksEndedBefore :many
SELECT ` + weekColumns + ` FROM weeks WHERE rollover_applied = 0 AND end_date < ? ORDER BY week_number`

func (q *Queries) ListOpenWeeksEndedBefore(ctx context.Context, date string) ([]Week, error) {
	return collectWeeks(q.db.QueryContext(ctx, listOpenWeeksEndedBefore, date))
}

const updateWeekRunningTotal = `-- name: UpdateWeekRunningTotal :execresult
UPDATE weeks SET running_total_cents = ? WHERE week_number = ?`

type UpdateWeekRunningTotalParams struct {
	RunningTotalCents int64
	WeekNumber        int64
}

func (q *Queries) UpdateWeekRunningTotal(ctx context.Context, arg UpdateWeekRunningTotalParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateWeekRunningTotal, arg.RunningTotalCents, arg.WeekNumber)
}

const markRolloverApplied = `-- name: MarkRolloverApplied :execresult
UPDATE weeks SET rollover_applied = 1 WHERE week_number = ? AND rollover_applied = 0`

func (q *Queries) MarkRolloverApplied(ctx context.Context, weekNumber int64) (sql.Result, error) {
	return q.db.ExecContext(ctx, markRolloverApplied, weekNumber)
}
