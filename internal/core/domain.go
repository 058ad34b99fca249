package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income     TransactionType = "income"
	Spending   TransactionType = "spending"
	Saving     TransactionType = "saving"
	Withdrawal TransactionType = "withdrawal"
	BillPay    TransactionType = "bill_pay"
	Rollover   TransactionType = "rollover"
)

const (
	SavingsEntity EntityType = "savings"
	BillEntity    EntityType = "bill"
)

const (
	FrequencyWeekly     PaymentFrequency = "weekly"
	FrequencyMonthly    PaymentFrequency = "monthly"
	FrequencyQuarterly  PaymentFrequency = "quarterly"
	FrequencySemester   PaymentFrequency = "semester"
	FrequencySemiAnnual PaymentFrequency = "semi-annual"
	FrequencyYearly     PaymentFrequency = "yearly"
	FrequencyOther      PaymentFrequency = "other"
)

// DaysPerWeek is the inclusive length of a budget week.
const DaysPerWeek = 7

const (
	MaxNameLen        = 100
	MaxDescriptionLen = 200
)

type (
	TransactionType  string
	EntityType       string
	PaymentFrequency string

	Date struct {
		time.Time
	}

	// Account is a savings bucket.
	Account struct {
		ID              int64
		Name            string
		StartingBalance Money
		GoalAmount      Money // zero means no goal
		AutoSave        SaveRule
		IsDefaultSave   bool
		RunningTotal    Money // cached; must equal the derived balance
	}

	// Bill is a recurring obligation being saved toward.
	Bill struct {
		ID                int64
		Name              string
		BillType          string
		Frequency         PaymentFrequency
		TypicalAmount     Money // zero signals a variable bill
		IsVariable        bool
		AmountToSave      SaveRule
		StartingBalance   Money
		RunningTotal      Money
		LastPaymentDate   Date
		LastPaymentAmount Money
		Notes             string
	}

	// Week is one half of a bi-weekly pay period.
	Week struct {
		Number          int64
		StartDate       Date
		EndDate         Date
		RunningTotal    Money // base allotment, never includes rollovers
		RolloverApplied bool
	}

	Transaction struct {
		ID                 int64
		Type               TransactionType
		Amount             Money
		Date               Date
		Description        string
		WeekNumber         int64
		Category           string
		AccountID          int64 // zero when unset
		BillID             int64 // zero when unset
		IncludeInAnalytics bool
		BalanceDelta       Money // resolved signed effect on the referenced bucket
		WeekAdjustment     Money // net amount moved out of a week's allotment by edits
		WeekAdjustmentWeek int64 // week holding WeekAdjustment; zero before the first edit
		TransferGroupID    string
	}

	// NewTransaction is the input accepted by the recorder.
	NewTransaction struct {
		Type                 TransactionType
		Amount               Money
		Date                 Date
		Description          string
		WeekNumber           int64
		Category             string
		AccountID            int64
		BillID               int64
		ExcludeFromAnalytics bool
		TransferGroupID      string
	}

	// HistoryEntry is one row of the per-bucket audit ledger.
	// TransactionID is zero for the seed (starting balance) row.
	HistoryEntry struct {
		ID            int64
		TransactionID int64
		EntityID      int64
		EntityType    EntityType
		ChangeAmount  Money
		RunningTotal  Money
		Date          Date
		Description   string
	}

	// Bucket is the balance-carrying view shared by accounts and bills.
	Bucket struct {
		Entity          EntityType
		ID              int64
		Name            string
		StartingBalance Money
		RunningTotal    Money
	}

	TransactionFilter struct {
		WeekNumber    int64
		AccountID     int64
		BillID        int64
		Type          TransactionType
		From          Date
		To            Date
		AnalyticsOnly bool
		Limit         int
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidFrequency   = errors.New("invalid payment frequency")
	ErrMissingCategory    = errors.New("category required for spending")
	ErrUnexpectedCategory = errors.New("category only allowed for spending")
	ErrBucketRequired     = errors.New("exactly one of account_id or bill_id required")
	ErrBucketNotAllowed   = errors.New("transaction type does not reference an account or bill")
	ErrBillRequired       = errors.New("bill_pay requires bill_id")
	ErrMissingWeek        = errors.New("week number required")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Spending, Saving, Withdrawal, BillPay, Rollover:
		return true
	}
	return false
}

func (e EntityType) Valid() bool {
	return e == SavingsEntity || e == BillEntity
}

// ParseEntityType accepts "account" as an alias for savings.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "account", "savings":
		return SavingsEntity, nil
	case "bill":
		return BillEntity, nil
	}
	return "", &ValidationError{Field: "entity_type", Err: errors.New("must be account or bill")}
}

func (f PaymentFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencySemester,
		FrequencySemiAnnual, FrequencyYearly, FrequencyOther:
		return true
	}
	return false
}

// GoalProgressPercent reports progress toward the goal, capped at 100.
func (a Account) GoalProgressPercent() float64 {
	if a.GoalAmount.Cents <= 0 {
		return 0
	}
	p := float64(a.RunningTotal.Cents) / float64(a.GoalAmount.Cents) * 100
	if p > 100 {
		return 100
	}
	return p
}

// GoalRemaining is the amount still missing to reach the goal.
func (a Account) GoalRemaining() Money {
	if a.GoalAmount.Cents <= 0 {
		return Money{}
	}
	rem := a.GoalAmount.Sub(a.RunningTotal)
	if rem.Cents < 0 {
		return Money{}
	}
	return rem
}

func (a Account) Validate() error {
	if err := validateName(a.Name); err != nil {
		return err
	}
	if a.GoalAmount.Cents < 0 {
		return &ValidationError{Field: "goal_amount", Err: ErrInvalidAmount}
	}
	if a.AutoSave.IsNegative() {
		return &ValidationError{Field: "auto_save_amount", Err: ErrInvalidAmount}
	}
	return nil
}

func (b Bill) Validate() error {
	if err := validateName(b.Name); err != nil {
		return err
	}
	if !b.Frequency.Valid() {
		return &ValidationError{Field: "payment_frequency", Err: ErrInvalidFrequency}
	}
	if b.TypicalAmount.Cents < 0 {
		return &ValidationError{Field: "typical_amount", Err: ErrInvalidAmount}
	}
	if b.AmountToSave.IsNegative() {
		return &ValidationError{Field: "amount_to_save", Err: ErrInvalidAmount}
	}
	return nil
}

func validateName(name string) error {
	switch n := strings.TrimSpace(name); {
	case n == "":
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	case utf8.RuneCountInString(n) > MaxNameLen:
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	return nil
}

// Describe formats a description the engine writes on the user's behalf,
// cut to MaxDescriptionLen bytes on a rune boundary.
func Describe(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if len(s) <= MaxDescriptionLen {
		return s
	}
	cut := MaxDescriptionLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Contains reports whether d falls inside the week, bounds included.
func (w Week) Contains(d Date) bool {
	return !d.Before(w.StartDate) && !d.After(w.EndDate)
}

// Ended reports whether the week's end date is strictly before today.
func (w Week) Ended(today Date) bool {
	return w.EndDate.Before(today)
}

// Validate checks the recorder's input rules. Rollover rows are created by
// the engine only and may carry a zero or negative amount.
func (t NewTransaction) Validate() error {
	if !t.Type.Valid() {
		return &ValidationError{Field: "transaction_type", Err: ErrInvalidType}
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if t.WeekNumber <= 0 {
		return &ValidationError{Field: "week_number", Err: ErrMissingWeek}
	}
	if t.Type != Rollover && t.Amount.Cents <= 0 {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if len(t.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}

	hasCategory := strings.TrimSpace(t.Category) != ""
	if t.Type == Spending && !hasCategory {
		return &ValidationError{Field: "category", Err: ErrMissingCategory}
	}
	if t.Type != Spending && hasCategory {
		return &ValidationError{Field: "category", Err: ErrUnexpectedCategory}
	}

	switch t.Type.Bucket() {
	case BucketExactlyOne:
		if (t.AccountID == 0) == (t.BillID == 0) {
			return &ValidationError{Field: "account_id", Err: ErrBucketRequired}
		}
	case BucketBillOnly:
		if t.BillID == 0 || t.AccountID != 0 {
			return &ValidationError{Field: "bill_id", Err: ErrBillRequired}
		}
	case BucketNone:
		if t.AccountID != 0 || t.BillID != 0 {
			return &ValidationError{Field: "account_id", Err: ErrBucketNotAllowed}
		}
	}
	return nil
}

// Target returns the bucket referenced by the transaction, if any.
func (t Transaction) Target() (EntityType, int64, bool) {
	switch {
	case t.AccountID != 0:
		return SavingsEntity, t.AccountID, true
	case t.BillID != 0:
		return BillEntity, t.BillID, true
	}
	return "", 0, false
}

// Target returns the bucket referenced by the input, if any.
func (t NewTransaction) Target() (EntityType, int64, bool) {
	return Transaction{AccountID: t.AccountID, BillID: t.BillID}.Target()
}
