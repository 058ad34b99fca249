package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budget/internal/core"
)

// AddReimbursement tracks a new reimbursement. It defaults to pending and
// to today's date.
func (s *LedgerService) AddReimbursement(ctx context.Context, r core.Reimbursement) (core.Reimbursement, error) {
	if r.Date.IsZero() {
		r.Date = s.today()
	}
	state := r.State
	if state == "" {
		state = core.ReimbursementPending
	}
	r.Transition(state, s.today())
	r.Notes = strings.TrimSpace(r.Notes)
	r.Category = strings.TrimSpace(r.Category)
	r.Location = strings.TrimSpace(r.Location)
	if err := r.Validate(); err != nil {
		return core.Reimbursement{}, err
	}

	out, err := s.storage.CreateReimbursement(ctx, r)
	if err != nil {
		return core.Reimbursement{}, fmt.Errorf("add reimbursement: %w", err)
	}
	slog.InfoContext(ctx, "Reimbursement added",
		"reimbursement_id", out.ID,
		"amount_cents", out.Amount.Cents,
		"state", out.State)
	return out, nil
}

// SetReimbursementState moves a reimbursement through its lifecycle,
// filling in submitted and reimbursed dates.
func (s *LedgerService) SetReimbursementState(ctx context.Context, id int64, state core.ReimbursementState) (core.Reimbursement, error) {
	if !state.Valid() {
		return core.Reimbursement{}, core.Invalid("state", "unknown reimbursement state %q", state)
	}
	r, err := s.storage.GetReimbursement(ctx, id)
	if err != nil {
		return core.Reimbursement{}, err
	}
	r.Transition(state, s.today())
	if err := s.storage.UpdateReimbursementState(ctx, r); err != nil {
		return core.Reimbursement{}, fmt.Errorf("update reimbursement %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Reimbursement state changed", "reimbursement_id", id, "state", state)
	return r, nil
}

// ListReimbursements filters by state; an empty state lists all.
func (s *LedgerService) ListReimbursements(ctx context.Context, state core.ReimbursementState) ([]core.Reimbursement, error) {
	if state != "" && !state.Valid() {
		return nil, core.Invalid("state", "unknown reimbursement state %q", state)
	}
	return s.storage.ListReimbursements(ctx, state)
}

func (s *LedgerService) DeleteReimbursement(ctx context.Context, id int64) error {
	return s.storage.DeleteReimbursement(ctx, id)
}

func (s *LedgerService) ReimbursementTotals(ctx context.Context) (core.ReimbursementTotals, error) {
	return s.storage.ReimbursementTotals(ctx)
}
