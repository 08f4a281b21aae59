// Package money provides the exact decimal amount used for every balance and
// loan figure in the ledger, plus parsing and formatting of human amounts
// such as "2.5m" or "3 billion".
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by Div when the divisor is zero.
var ErrDivisionByZero = errors.New("money: division by zero")

// Amount is an arbitrary-precision signed decimal: sign * mantissa * 10^scale.
// The zero value is a valid zero amount. No float representation is kept.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// New returns an integer amount.
func New(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// NewFromBigInt returns the integer amount i. i is copied.
func NewFromBigInt(i *big.Int) Amount {
	if i == nil {
		return Zero
	}
	return Amount{d: decimal.NewFromBigInt(new(big.Int).Set(i), 0)}
}

// NewFromParts builds sign*mantissa*10^scale. The sign of mantissa is ignored.
func NewFromParts(sign int, mantissa *big.Int, scale int32) Amount {
	if sign == 0 || mantissa == nil || mantissa.Sign() == 0 {
		return Zero
	}
	m := new(big.Int).Abs(mantissa)
	if sign < 0 {
		m.Neg(m)
	}
	return Amount{d: decimal.NewFromBigInt(m, scale)}
}

// NewFromFloat converts f using its shortest exact decimal representation.
func NewFromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// NewFromString parses plain decimal ("-12.50") or scientific ("1.5e12") notation.
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// FromStorageString decodes the persisted representation written by StorageString.
func FromStorageString(s string) (Amount, error) {
	if s == "" {
		return Zero, nil
	}
	return NewFromString(s)
}

// StorageString is the canonical persisted text form. It never goes through
// a float, so FromStorageString(a.StorageString()) equals a exactly.
func (a Amount) StorageString() string {
	return a.d.String()
}

func (a Amount) String() string {
	return a.d.String()
}

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int { return a.d.Sign() }

// Mantissa returns the absolute coefficient.
func (a Amount) Mantissa() *big.Int {
	return new(big.Int).Abs(a.d.Coefficient())
}

// Scale returns the base-10 exponent of the mantissa.
func (a Amount) Scale() int32 { return a.d.Exponent() }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }

// Div is integer division truncated toward zero; the fractional part of the
// quotient is dropped.
func (a Amount) Div(b Amount) (Amount, error) {
	if b.IsZero() {
		return Zero, ErrDivisionByZero
	}
	q, _ := a.d.QuoRem(b.d, 0)
	return Amount{d: q}, nil
}

// MulPow10 returns a * 10^n.
func (a Amount) MulPow10(n int32) Amount { return Amount{d: a.d.Shift(n)} }

// Truncate drops the fractional part, rounding toward zero.
func (a Amount) Truncate() Amount { return Amount{d: a.d.Truncate(0)} }

func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

func (a Amount) Abs() Amount { return Amount{d: a.d.Abs()} }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

func (a Amount) LessThanOrEqual(b Amount) bool { return a.d.LessThanOrEqual(b.d) }

func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// IsInteger reports whether a has no fractional part.
func (a Amount) IsInteger() bool { return a.d.IsInteger() }

// BigInt returns the integer part of a.
func (a Amount) BigInt() *big.Int { return a.d.BigInt() }

// Int64 returns the integer part of a and whether it fits in an int64.
func (a Amount) Int64() (int64, bool) {
	i := a.d.BigInt()
	if !i.IsInt64() {
		return 0, false
	}
	return i.Int64(), true
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds every amount.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Value implements driver.Valuer. Amounts are stored as text.
func (a Amount) Value() (driver.Value, error) {
	return a.StorageString(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(value interface{}) error {
	if value == nil {
		*a = Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	a.d = d
	return nil
}

// MarshalJSON renders the amount as a JSON string to keep full precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.StorageString())
}

// UnmarshalJSON accepts a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*a = Zero
		return nil
	}
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
