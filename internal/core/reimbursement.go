package core

import "strings"

type ReimbursementState string

const (
	ReimbursementPending    ReimbursementState = "pending"
	ReimbursementSubmitted  ReimbursementState = "submitted"
	ReimbursementReimbursed ReimbursementState = "reimbursed"
	ReimbursementPartial    ReimbursementState = "partial"
	ReimbursementDenied     ReimbursementState = "denied"
)

// Reimbursement tracks money spent on someone else's behalf. It never
// touches account, bill or week balances.
type Reimbursement struct {
	ID             int64
	Amount         Money
	Date           Date
	State          ReimbursementState
	Notes          string
	Category       string
	Location       string
	SubmittedDate  Date
	ReimbursedDate Date
}

// ReimbursementTotals aggregates amounts by lifecycle stage.
type ReimbursementTotals struct {
	Pending     Money
	Outstanding Money // submitted or partial
	Reimbursed  Money
}

func (s ReimbursementState) Valid() bool {
	switch s {
	case ReimbursementPending, ReimbursementSubmitted, ReimbursementReimbursed,
		ReimbursementPartial, ReimbursementDenied:
		return true
	}
	return false
}

// Complete reports whether no further money is expected.
func (s ReimbursementState) Complete() bool {
	return s == ReimbursementReimbursed || s == ReimbursementDenied
}

func (s ReimbursementState) Label() string {
	switch s {
	case ReimbursementPending:
		return "Pending Submission"
	case ReimbursementSubmitted:
		return "Awaiting Payment"
	case ReimbursementReimbursed:
		return "Reimbursed"
	case ReimbursementPartial:
		return "Partially Reimbursed"
	case ReimbursementDenied:
		return "Denied"
	}
	return string(s)
}

// Transition moves r to state and fills in the lifecycle dates that the
// new state implies, keeping any dates already set.
func (r *Reimbursement) Transition(state ReimbursementState, today Date) {
	r.State = state
	switch state {
	case ReimbursementSubmitted:
		if r.SubmittedDate.IsZero() {
			r.SubmittedDate = today
		}
	case ReimbursementReimbursed, ReimbursementPartial:
		if r.SubmittedDate.IsZero() {
			r.SubmittedDate = today
		}
		if r.ReimbursedDate.IsZero() {
			r.ReimbursedDate = today
		}
	}
}

func (r Reimbursement) Validate() error {
	if err := r.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if err := r.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if !r.State.Valid() {
		return Invalid("state", "unknown reimbursement state %q", r.State)
	}
	if len(strings.TrimSpace(r.Notes)) > MaxDescriptionLen {
		return &ValidationError{Field: "notes", Err: ErrDescriptionTooLong}
	}
	return nil
}
