package core

// WeekSummary breaks down a week's spendable money.
type WeekSummary struct {
	Week       Week
	Base       Money // week running_total
	RolloverIn Money // signed sum of rollover transactions into the week
	Spending   Money // spending, excluding allocation entries
	Starting   Money
	Current    Money
	ByCategory []CategoryAmount
}

// PayPeriodSummary pairs the two weeks funded by one paycheck.
type PayPeriodSummary struct {
	Week1    WeekSummary
	Week2    WeekSummary
	HasWeek2 bool
	Spending Money
	Current  Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// PairOf returns the two week numbers of the pay period containing n.
// Paychecks create weeks in pairs starting at week 1.
func PairOf(n int64) (int64, int64) {
	if n%2 == 1 {
		return n, n + 1
	}
	return n - 1, n
}
