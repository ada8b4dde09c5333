// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents so sums over many months never drift;
// github.com/shopspring/decimal is used at the edges where a fractional
// value (parsing, averages, display) is needed.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var centsPerUnit = decimal.NewFromInt(100)

// MaxCents bounds any single amount (one billion currency units). Sums of
// bounded amounts over years of weekly occurrences stay well inside int64.
const MaxCents int64 = 100_000_000_000

var maxCents = decimal.NewFromInt(MaxCents)

// Money is a currency amount in cents. Balances may be negative; entry
// amounts are validated positive.
type Money struct {
	Cents int64
}

// Cents is a shorthand constructor.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values are accepted only when allowNegative is set (wallet balances).
//
// Examples:
//
//	ParseMoney("12.34", false) -> 1234
//	ParseMoney("12,345", false) -> 1235
func ParseMoney(s string, allowNegative bool) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() && !allowNegative {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// ParseDecimalToCents parses a strictly positive amount into cents.
func ParseDecimalToCents(s string) (int64, error) {
	m, err := ParseMoney(s, false)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// FromDecimal converts a currency-unit decimal to Money, rounding half away
// from zero on the third decimal place. Magnitudes above MaxCents are
// rejected.
func FromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Mul(centsPerUnit).Round(0)
	if !c.IsInteger() || c.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: c.IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Times multiplies by an occurrence count.
func (m Money) Times(n int) Money { return Money{Cents: m.Cents * int64(n)} }

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Euros returns the value as a float64 for display purposes only.
func (m Money) Euros() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON emits a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(s, true)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
