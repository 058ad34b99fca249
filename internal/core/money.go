// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Fractions (save rules, split ratios)
// are decimals and are rounded half away from zero when converted back to
// cents.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	Money struct {
		Cents int64
	}

	// SaveRule is an auto-save or bill set-aside amount. A value strictly
	// between 0 and 1 is a fraction of the paycheck; anything else is a
	// fixed dollar amount per paycheck.
	SaveRule struct {
		Value decimal.Decimal
	}
)

var hundred = decimal.NewFromInt(100)

// Dollars builds Money from a dollar amount, rounding to the cent.
func Dollars(v float64) Money {
	return Money{Cents: decimal.NewFromFloat(v).Mul(hundred).Round(0).IntPart()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsNegative() bool  { return m.Cents < 0 }

// Decimal returns the dollar value without loss of precision.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// Float returns the dollar value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	sign := ""
	if m.Cents < 0 {
		sign = "-"
	}
	abs := m.Abs().Cents
	return fmt.Sprintf("%s$%d.%02d", sign, abs/100, abs%100)
}

// MulFraction multiplies by f and rounds to the nearest cent.
func (m Money) MulFraction(f decimal.Decimal) Money {
	return Money{Cents: decimal.NewFromInt(m.Cents).Mul(f).Round(0).IntPart()}
}

// Split divides m into two parts where first = round(m * ratio) and
// second = m - first, so the parts always add back to m.
func (m Money) Split(ratio decimal.Decimal) (Money, Money) {
	first := m.MulFraction(ratio)
	return first, m.Sub(first)
}

// ParseMoney converts a decimal string to Money.
//
// It accepts dot (12.34) and comma (12,34) separators and an optional
// leading "$". Values with more than two decimals are rounded half away
// from zero. Negative values are rejected; zero is allowed so callers can
// decide.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// ParseDecimalToCents parses a strictly positive amount into cents.
func ParseDecimalToCents(s string) (int64, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// NewSaveRule wraps a plain number, e.g. 0.2 (20%) or 50 ($50).
func NewSaveRule(v float64) SaveRule {
	return SaveRule{Value: decimal.NewFromFloat(v)}
}

// ParseSaveRule accepts "0.2", "20%" or "50".
func ParseSaveRule(s string) (SaveRule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SaveRule{}, nil
	}
	if strings.HasSuffix(s, "%") {
		d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
		if err != nil || d.IsNegative() || d.GreaterThanOrEqual(hundred) {
			return SaveRule{}, ErrInvalidAmount
		}
		return SaveRule{Value: d.Div(hundred)}, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
	if err != nil || d.IsNegative() {
		return SaveRule{}, ErrInvalidAmount
	}
	return SaveRule{Value: d}, nil
}

func (r SaveRule) IsZero() bool     { return !r.Value.IsPositive() && !r.Value.IsNegative() }
func (r SaveRule) IsNegative() bool { return r.Value.IsNegative() }

// IsFraction reports whether the rule is a share of the paycheck.
func (r SaveRule) IsFraction() bool {
	return r.Value.IsPositive() && r.Value.LessThan(decimal.NewFromInt(1))
}

// Reserve returns the amount set aside from a paycheck.
func (r SaveRule) Reserve(paycheck Money) Money {
	if !r.Value.IsPositive() {
		return Money{}
	}
	if r.IsFraction() {
		return paycheck.MulFraction(r.Value)
	}
	return Money{Cents: r.Value.Mul(hundred).Round(0).IntPart()}
}

func (r SaveRule) String() string {
	if r.IsFraction() {
		return r.Value.Mul(hundred).String() + "%"
	}
	return Money{Cents: r.Value.Mul(hundred).Round(0).IntPart()}.String()
}
