package money

import (
	"encoding/json"
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Amount {
	t.Helper()
	a, err := NewFromString(s)
	require.NoError(t, err)
	return a
}

func TestStorageStringRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(300), nil)

	for i := 0; i < 500; i++ {
		n := new(big.Int).Rand(r, limit)
		if i%2 == 1 {
			n.Neg(n)
		}
		x := NewFromBigInt(n)

		got, err := FromStorageString(x.StorageString())
		require.NoError(t, err)
		assert.True(t, got.Equal(x), "round trip of %s gave %s", x, got)
		assert.Equal(t, 0, got.BigInt().Cmp(n))
	}
}

func TestStorageStringRoundTrip_Fractions(t *testing.T) {
	for _, s := range []string{"0", "-0.5", "12.340", "1e300", "-3.14159e-20"} {
		x := mustParse(t, s)
		got, err := FromStorageString(x.StorageString())
		require.NoError(t, err)
		assert.True(t, got.Equal(x), s)
	}
}

func TestConstruction(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		expected string
	}{
		{"integer", New(1500), "1500"},
		{"float", NewFromFloat(0.1), "0.1"},
		{"scientific", mustParse(t, "2.5e6"), "2500000"},
		{"negative parts", NewFromParts(-1, big.NewInt(125), -2), "-1.25"},
		{"zero parts", NewFromParts(1, big.NewInt(0), 5), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.amount.String())
		})
	}
}

func TestSignMantissaScale(t *testing.T) {
	a := NewFromParts(-1, big.NewInt(42), 3)

	assert.Equal(t, -1, a.Sign())
	assert.Equal(t, "42", a.Mantissa().String())
	assert.Equal(t, int32(3), a.Scale())
	assert.Equal(t, 0, Zero.Sign())
}

func TestArithmetic(t *testing.T) {
	a := New(7)
	b := New(2)

	assert.True(t, a.Add(b).Equal(New(9)))
	assert.True(t, a.Sub(b).Equal(New(5)))
	assert.True(t, a.Mul(b).Equal(New(14)))
	assert.True(t, a.MulPow10(3).Equal(New(7000)))
	assert.True(t, New(7000).MulPow10(-3).Equal(a))
	assert.True(t, a.Neg().Abs().Equal(a))
}

func TestDiv_TruncatesTowardZero(t *testing.T) {
	tests := []struct {
		a, b     int64
		expected int64
	}{
		{7, 2, 3},
		{-7, 2, -3},
		{7, -2, -3},
		{6, 3, 2},
		{1, 3, 0},
	}

	for _, tt := range tests {
		q, err := New(tt.a).Div(New(tt.b))
		require.NoError(t, err)
		assert.True(t, q.Equal(New(tt.expected)), "%d/%d = %s", tt.a, tt.b, q)
	}

	_, err := New(1).Div(Zero)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestComparisons(t *testing.T) {
	small := New(1)
	huge := mustParse(t, "1e200")

	assert.True(t, small.LessThan(huge))
	assert.True(t, small.LessThanOrEqual(small))
	assert.True(t, huge.GreaterThan(small))
	assert.True(t, huge.GreaterThanOrEqual(huge))
	assert.Equal(t, -1, small.Cmp(huge))
	assert.True(t, Min(small, huge).Equal(small))
	assert.True(t, Max(small, huge).Equal(huge))
	assert.True(t, Sum(small, small, small).Equal(New(3)))
	assert.True(t, New(-1).IsNegative())
	assert.True(t, small.IsPositive())
	assert.True(t, Zero.IsZero())
}

func TestInt64(t *testing.T) {
	v, ok := New(123).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(123), v)

	_, ok = mustParse(t, "1e30").Int64()
	assert.False(t, ok)
}

func TestScanAndValue(t *testing.T) {
	a := mustParse(t, "123456789012345678901234567890")

	v, err := a.Value()
	require.NoError(t, err)

	var scanned Amount
	require.NoError(t, scanned.Scan(v))
	assert.True(t, scanned.Equal(a))

	require.NoError(t, scanned.Scan([]byte("42")))
	assert.True(t, scanned.Equal(New(42)))

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())
}

func TestJSON(t *testing.T) {
	payload := struct {
		Amount Amount `json:"amount"`
	}{Amount: mustParse(t, "1e25")}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1`+strings.Repeat("0", 25)+`"}`, string(data))

	var decoded struct {
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":250}`), &decoded))
	assert.True(t, decoded.Amount.Equal(New(250)))
}
