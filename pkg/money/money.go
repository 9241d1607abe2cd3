// Package money provides the fixed-point decimal type used for every price,
// quantity, fee, and PnL value in the platform. Exchange JSON numbers are
// parsed directly into decimal.Decimal so no value ever passes through a
// binary floating-point representation.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money wraps decimal.Decimal so the rest of the codebase has one vocabulary
// type instead of sprinkling decimal.Decimal (and its zero-value footguns)
// everywhere.
type Money struct {
	decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{decimal.Zero}

// New wraps a decimal.Decimal.
func New(d decimal.Decimal) Money {
	return Money{d}
}

// NewFromInt builds a Money from an integer number of units.
func NewFromInt(i int64) Money {
	return Money{decimal.NewFromInt(i)}
}

// Parse parses a decimal string (as exchanges send prices/quantities).
// Never use strconv.ParseFloat for this — that is how rounding errors
// enter a ledger.
func Parse(s string) (Money, error) {
	if s == "" {
		return Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustParse panics on malformed input. Only use for constants known at
// compile time (test fixtures, defaults).
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money { return Money{m.Decimal.Sub(o.Decimal)} }
func (m Money) Mul(o Money) Money { return Money{m.Decimal.Mul(o.Decimal)} }
func (m Money) Div(o Money) Money { return Money{m.Decimal.Div(o.Decimal)} }
func (m Money) Neg() Money        { return Money{m.Decimal.Neg()} }
func (m Money) Abs() Money        { return Money{m.Decimal.Abs()} }

func (m Money) IsZero() bool          { return m.Decimal.IsZero() }
func (m Money) IsPositive() bool      { return m.Decimal.IsPositive() }
func (m Money) IsNegative() bool      { return m.Decimal.IsNegative() }
func (m Money) GreaterThan(o Money) bool      { return m.Decimal.GreaterThan(o.Decimal) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Decimal.GreaterThanOrEqual(o.Decimal) }
func (m Money) LessThan(o Money) bool         { return m.Decimal.LessThan(o.Decimal) }
func (m Money) LessThanOrEqual(o Money) bool  { return m.Decimal.LessThanOrEqual(o.Decimal) }
func (m Money) Equal(o Money) bool            { return m.Decimal.Equal(o.Decimal) }

// Cmp matches decimal.Decimal.Cmp: -1, 0, 1.
func (m Money) Cmp(o Money) int { return m.Decimal.Cmp(o.Decimal) }

// Sign mirrors the "sign(side)" term in spec's unrealized-PnL invariant:
// +1 when positive is true, -1 otherwise.
func Sign(positive bool) int64 {
	if positive {
		return 1
	}
	return -1
}

// MarshalJSON emits the decimal as a JSON string (not a bare number), the
// same convention the teacher's exchange JSON payloads use for price/size
// fields — preserves precision across the wire in both directions.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.Decimal.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number, since
// exchanges are inconsistent about which they send.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("unmarshal money %q: %w", s, err)
	}
	m.Decimal = d
	return nil
}

// Value implements driver.Valuer for database/sql compatibility.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.String(), nil
}
