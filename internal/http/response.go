package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// errorStatus maps the ledger error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var (
		nt *core.NoTargetWeekError
		ce *core.ConsistencyError
	)
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &nt), errors.Is(err, core.ErrWeekNotEnded), errors.As(err, &ce):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func errorType(status int, err error) string {
	var se *core.StorageError
	switch {
	case status == http.StatusBadRequest:
		return log.ErrorTypeValidation
	case status == http.StatusNotFound:
		return log.ErrorTypeNotFound
	case status == http.StatusConflict:
		return log.ErrorTypeConflict
	case errors.As(err, &se):
		return log.ErrorTypeDatabase
	}
	return log.ErrorTypeInternal
}

// fail logs err and writes the mapped error response. Internal details of
// storage failures are not echoed to the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	resp := ErrorResponse{Error: err.Error()}

	var (
		ve *core.ValidationError
		ce *core.ConsistencyError
	)
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if errors.As(err, &ce) {
		resp.Details = ce.Issues
	}

	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
		log.NewStructuredLogger(logger).
			LogError(r.Context(), "Request failed", err, errorType(status, err), log.ComponentHTTP, r.Method, fields)
		resp.Error = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType(status, err))
	}
	writeJSON(w, status, resp)
}

// Amount renders money both exactly and for display.
type Amount struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func amount(m core.Money) Amount { return Amount{Cents: m.Cents, Display: m.String()} }

func date(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

type AccountDTO struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	StartingBalance Amount  `json:"starting_balance"`
	RunningTotal    Amount  `json:"running_total"`
	GoalAmount      Amount  `json:"goal_amount"`
	GoalProgress    float64 `json:"goal_progress_percent"`
	AutoSave        string  `json:"auto_save"`
	IsDefaultSave   bool    `json:"is_default_save"`
}

func toAccountDTO(a core.Account) AccountDTO {
	return AccountDTO{
		ID:              a.ID,
		Name:            a.Name,
		StartingBalance: amount(a.StartingBalance),
		RunningTotal:    amount(a.RunningTotal),
		GoalAmount:      amount(a.GoalAmount),
		GoalProgress:    a.GoalProgressPercent(),
		AutoSave:        a.AutoSave.String(),
		IsDefaultSave:   a.IsDefaultSave,
	}
}

type BillDTO struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	BillType          string `json:"bill_type,omitempty"`
	Frequency         string `json:"payment_frequency"`
	TypicalAmount     Amount `json:"typical_amount"`
	IsVariable        bool   `json:"is_variable"`
	AmountToSave      string `json:"amount_to_save"`
	StartingBalance   Amount `json:"starting_balance"`
	RunningTotal      Amount `json:"running_total"`
	LastPaymentDate   string `json:"last_payment_date,omitempty"`
	LastPaymentAmount Amount `json:"last_payment_amount"`
	Notes             string `json:"notes,omitempty"`
}

func toBillDTO(b core.Bill) BillDTO {
	return BillDTO{
		ID:                b.ID,
		Name:              b.Name,
		BillType:          b.BillType,
		Frequency:         string(b.Frequency),
		TypicalAmount:     amount(b.TypicalAmount),
		IsVariable:        b.IsVariable,
		AmountToSave:      b.AmountToSave.String(),
		StartingBalance:   amount(b.StartingBalance),
		RunningTotal:      amount(b.RunningTotal),
		LastPaymentDate:   date(b.LastPaymentDate),
		LastPaymentAmount: amount(b.LastPaymentAmount),
		Notes:             b.Notes,
	}
}

type WeekDTO struct {
	Number          int64  `json:"week_number"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	RunningTotal    Amount `json:"running_total"`
	RolloverApplied bool   `json:"rollover_applied"`
}

func toWeekDTO(w core.Week) WeekDTO {
	return WeekDTO{
		Number:          w.Number,
		StartDate:       date(w.StartDate),
		EndDate:         date(w.EndDate),
		RunningTotal:    amount(w.RunningTotal),
		RolloverApplied: w.RolloverApplied,
	}
}

type TransactionDTO struct {
	ID                 int64  `json:"id"`
	Type               string `json:"transaction_type"`
	Amount             Amount `json:"amount"`
	Date               string `json:"date"`
	Description        string `json:"description"`
	WeekNumber         int64  `json:"week_number"`
	Category           string `json:"category,omitempty"`
	AccountID          int64  `json:"account_id,omitempty"`
	BillID             int64  `json:"bill_id,omitempty"`
	IncludeInAnalytics bool   `json:"include_in_analytics"`
	BalanceDelta       Amount `json:"balance_delta"`
	WeekAdjustment     Amount `json:"week_adjustment"`
	TransferGroupID    string `json:"transfer_group_id,omitempty"`
}

func toTransactionDTO(t core.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:                 t.ID,
		Type:               string(t.Type),
		Amount:             amount(t.Amount),
		Date:               date(t.Date),
		Description:        t.Description,
		WeekNumber:         t.WeekNumber,
		Category:           t.Category,
		AccountID:          t.AccountID,
		BillID:             t.BillID,
		IncludeInAnalytics: t.IncludeInAnalytics,
		BalanceDelta:       amount(t.BalanceDelta),
		WeekAdjustment:     amount(t.WeekAdjustment),
		TransferGroupID:    t.TransferGroupID,
	}
}

func toTransactionDTOs(txs []core.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

type HistoryDTO struct {
	ID            int64  `json:"id"`
	TransactionID int64  `json:"transaction_id,omitempty"`
	EntityID      int64  `json:"account_id"`
	EntityType    string `json:"account_type"`
	ChangeAmount  Amount `json:"change_amount"`
	RunningTotal  Amount `json:"running_total"`
	Date          string `json:"date"`
	Description   string `json:"description"`
}

func toHistoryDTOs(rows []core.HistoryEntry) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(rows))
	for _, h := range rows {
		out = append(out, HistoryDTO{
			ID:            h.ID,
			TransactionID: h.TransactionID,
			EntityID:      h.EntityID,
			EntityType:    string(h.EntityType),
			ChangeAmount:  amount(h.ChangeAmount),
			RunningTotal:  amount(h.RunningTotal),
			Date:          date(h.Date),
			Description:   h.Description,
		})
	}
	return out
}

type CategoryDTO struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
}

type WeekSummaryDTO struct {
	Week       WeekDTO       `json:"week"`
	Base       Amount        `json:"base"`
	RolloverIn Amount        `json:"rollover_in"`
	Spending   Amount        `json:"spending"`
	Starting   Amount        `json:"starting"`
	Current    Amount        `json:"current"`
	ByCategory []CategoryDTO `json:"by_category"`
}

func toWeekSummaryDTO(s core.WeekSummary) WeekSummaryDTO {
	out := WeekSummaryDTO{
		Week:       toWeekDTO(s.Week),
		Base:       amount(s.Base),
		RolloverIn: amount(s.RolloverIn),
		Spending:   amount(s.Spending),
		Starting:   amount(s.Starting),
		Current:    amount(s.Current),
		ByCategory: make([]CategoryDTO, 0, len(s.ByCategory)),
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, CategoryDTO{Name: c.Name, Amount: amount(c.Amount)})
	}
	return out
}

type PayPeriodDTO struct {
	Week1    WeekSummaryDTO  `json:"week1"`
	Week2    *WeekSummaryDTO `json:"week2,omitempty"`
	Spending Amount          `json:"spending"`
	Current  Amount          `json:"current"`
}

func toPayPeriodDTO(p core.PayPeriodSummary) PayPeriodDTO {
	out := PayPeriodDTO{
		Week1:    toWeekSummaryDTO(p.Week1),
		Spending: amount(p.Spending),
		Current:  amount(p.Current),
	}
	if p.HasWeek2 {
		w2 := toWeekSummaryDTO(p.Week2)
		out.Week2 = &w2
	}
	return out
}

type PaycheckDTO struct {
	Income              TransactionDTO   `json:"income"`
	BillReservations    []TransactionDTO `json:"bill_reservations"`
	AccountReservations []TransactionDTO `json:"account_reservations"`
	Residual            Amount           `json:"residual"`
	Week1               WeekDTO          `json:"week1"`
	Week2               WeekDTO          `json:"week2"`
}

func toPaycheckDTO(p services.PaycheckResult) PaycheckDTO {
	return PaycheckDTO{
		Income:              toTransactionDTO(p.Income),
		BillReservations:    toTransactionDTOs(p.BillReservations),
		AccountReservations: toTransactionDTOs(p.AccountReservations),
		Residual:            amount(p.Residual),
		Week1:               toWeekDTO(p.Week1),
		Week2:               toWeekDTO(p.Week2),
	}
}

type RolloverDTO struct {
	WeekNumber  int64           `json:"week_number"`
	Applied     bool            `json:"applied"`
	Amount      Amount          `json:"amount"`
	TargetWeek  int64           `json:"target_week"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}

func toRolloverDTO(r services.RolloverResult) RolloverDTO {
	out := RolloverDTO{
		WeekNumber: r.WeekNumber,
		Applied:    r.Applied,
		Amount:     amount(r.Amount),
		TargetWeek: r.TargetWeek,
	}
	if r.Applied {
		t := toTransactionDTO(r.Transaction)
		out.Transaction = &t
	}
	return out
}

type AuditDTO struct {
	Entity   string   `json:"account_type"`
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Issues   []string `json:"issues"`
	Repaired bool     `json:"repaired"`
}

func toAuditDTO(a services.AuditReport) AuditDTO {
	issues := a.Issues
	if issues == nil {
		issues = []string{}
	}
	return AuditDTO{Entity: string(a.Entity), ID: a.ID, Name: a.Name, Issues: issues, Repaired: a.Repaired}
}

type ReimbursementDTO struct {
	ID             int64  `json:"id"`
	Amount         Amount `json:"amount"`
	Date           string `json:"date"`
	State          string `json:"state"`
	StateLabel     string `json:"state_label"`
	Notes          string `json:"notes,omitempty"`
	Category       string `json:"category,omitempty"`
	Location       string `json:"location,omitempty"`
	SubmittedDate  string `json:"submitted_date,omitempty"`
	ReimbursedDate string `json:"reimbursed_date,omitempty"`
}

func toReimbursementDTO(r core.Reimbursement) ReimbursementDTO {
	return ReimbursementDTO{
		ID:             r.ID,
		Amount:         amount(r.Amount),
		Date:           date(r.Date),
		State:          string(r.State),
		StateLabel:     r.State.Label(),
		Notes:          r.Notes,
		Category:       r.Category,
		Location:       r.Location,
		SubmittedDate:  date(r.SubmittedDate),
		ReimbursedDate: date(r.ReimbursedDate),
	}
}
