package storage

import (
	"context"
	"fmt"

	"budget/internal/core"
)

func toReimbursement(r Reimbursement) core.Reimbursement {
	return core.Reimbursement{
		ID:             r.ID,
		Amount:         core.Money{Cents: r.AmountCents},
		Date:           parseDate(r.Date),
		State:          core.ReimbursementState(r.State),
		Notes:          r.Notes,
		Category:       r.Category,
		Location:       r.Location,
		SubmittedDate:  parseNullDate(r.SubmittedDate),
		ReimbursedDate: parseNullDate(r.ReimbursedDate),
	}
}

func (r *SQLiteRepository) CreateReimbursement(ctx context.Context, re core.Reimbursement) (core.Reimbursement, error) {
	row, err := r.queries.CreateReimbursement(ctx, CreateReimbursementParams{
		AmountCents:    re.Amount.Cents,
		Date:           formatDate(re.Date),
		State:          string(re.State),
		Notes:          re.Notes,
		Category:       re.Category,
		Location:       re.Location,
		SubmittedDate:  nullDate(re.SubmittedDate),
		ReimbursedDate: nullDate(re.ReimbursedDate),
	})
	if err != nil {
		return core.Reimbursement{}, wrap("create reimbursement", err)
	}
	return toReimbursement(row), nil
}

func (r *SQLiteRepository) GetReimbursement(ctx context.Context, id int64) (core.Reimbursement, error) {
	row, err := r.queries.GetReimbursement(ctx, id)
	if err != nil {
		return core.Reimbursement{}, wrap(fmt.Sprintf("get reimbursement %d", id), err)
	}
	return toReimbursement(row), nil
}

// ListReimbursements returns the newest first. An empty state lists all.
func (r *SQLiteRepository) ListReimbursements(ctx context.Context, state core.ReimbursementState) ([]core.Reimbursement, error) {
	rows, err := r.queries.ListReimbursements(ctx, string(state))
	if err != nil {
		return nil, wrap("list reimbursements", err)
	}
	out := make([]core.Reimbursement, len(rows))
	for i, re := range rows {
		out[i] = toReimbursement(re)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateReimbursementState(ctx context.Context, re core.Reimbursement) error {
	res, err := r.queries.UpdateReimbursementState(ctx, UpdateReimbursementStateParams{
		State:          string(re.State),
		SubmittedDate:  nullDate(re.SubmittedDate),
		ReimbursedDate: nullDate(re.ReimbursedDate),
		ID:             re.ID,
	})
	return mustAffect(fmt.Sprintf("update reimbursement %d", re.ID), res, err)
}

func (r *SQLiteRepository) DeleteReimbursement(ctx context.Context, id int64) error {
	res, err := r.queries.DeleteReimbursement(ctx, id)
	return mustAffect(fmt.Sprintf("delete reimbursement %d", id), res, err)
}

func (r *SQLiteRepository) ReimbursementTotals(ctx context.Context) (core.ReimbursementTotals, error) {
	row, err := r.queries.ReimbursementTotals(ctx)
	if err != nil {
		return core.ReimbursementTotals{}, wrap("reimbursement totals", err)
	}
	return core.ReimbursementTotals{
		Pending:     core.Money{Cents: row.PendingCents},
		Outstanding: core.Money{Cents: row.OutstandingCents},
		Reimbursed:  core.Money{Cents: row.ReimbursedCents},
	}, nil
}
