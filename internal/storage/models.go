package storage

import "database/sql"

type Account struct {
	ID                   int64
	Name                 string
	StartingBalanceCents int64
	GoalAmountCents      int64
	AutoSaveAmount       string
	IsDefaultSave        bool
	RunningTotalCents    int64
}

type Bill struct {
	ID                     int64
	Name                   string
	BillType               string
	PaymentFrequency       string
	TypicalAmountCents     int64
	IsVariable             bool
	AmountToSave           string
	StartingBalanceCents   int64
	RunningTotalCents      int64
	LastPaymentDate        sql.NullString
	LastPaymentAmountCents int64
	Notes                  string
}

type Week struct {
	WeekNumber        int64
	StartDate         string
	EndDate           string
	RunningTotalCents int64
	RolloverApplied   bool
}

type Transaction struct {
	ID                  int64
	TransactionType     string
	AmountCents         int64
	Date                string
	Description         string
	WeekNumber          int64
	Category            sql.NullString
	AccountID           sql.NullInt64
	BillID              sql.NullInt64
	IncludeInAnalytics  bool
	BalanceDeltaCents   int64
	WeekAdjustmentCents int64
	WeekAdjustmentWeek  sql.NullInt64
	TransferGroupID     sql.NullString
}

type AccountHistory struct {
	ID                int64
	TransactionID     sql.NullInt64
	AccountID         int64
	AccountType       string
	ChangeAmountCents int64
	RunningTotalCents int64
	TransactionDate   string
	Description       string
}

type Reimbursement struct {
	ID             int64
	AmountCents    int64
	Date           string
	State          string
	Notes          string
	Category       string
	Location       string
	SubmittedDate  sql.NullString
	ReimbursedDate sql.NullString
}
