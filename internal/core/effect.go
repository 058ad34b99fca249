package core

// BucketRule says which foreign key a transaction type must carry.
type BucketRule int

const (
	BucketNone BucketRule = iota
	BucketExactlyOne
	BucketBillOnly
)

// Bucket returns the account/bill reference rule for the type.
func (t TransactionType) Bucket() BucketRule {
	switch t {
	case Saving, Withdrawal:
		return BucketExactlyOne
	case BillPay:
		return BucketBillOnly
	}
	return BucketNone
}

// BalanceDelta resolves the signed change a transaction of this type makes
// to its account or bill. amount is the non-negative magnitude supplied by
// the caller and before is the bucket balance as of the transaction date.
//
//	saving      +amount
//	withdrawal  -amount
//	bill_pay    -before (the bill resets to zero once paid)
//	others       0 (no bucket)
func (t TransactionType) BalanceDelta(amount, before Money) Money {
	switch t {
	case Saving:
		return amount
	case Withdrawal:
		return amount.Neg()
	case BillPay:
		return before.Neg()
	}
	return Money{}
}

// EditDelta is the bucket change caused by moving a transaction's amount
// from old to new. bill_pay follows withdrawal here: paying more leaves
// less in the bill.
func (t TransactionType) EditDelta(oldAmount, newAmount Money) Money {
	diff := newAmount.Sub(oldAmount)
	switch t {
	case Saving:
		return diff
	case Withdrawal, BillPay:
		return diff.Neg()
	}
	return Money{}
}

// MovesWeekOnEdit reports whether an amount edit shifts money between the
// bucket and the current week's allotment.
func (t TransactionType) MovesWeekOnEdit() bool {
	return t == Saving
}

// Editable reports whether the admin edit/delete path accepts the type.
// Rollovers are engine bookkeeping and are never edited by hand.
func (t TransactionType) Editable() bool {
	return t.Valid() && t != Rollover
}
