package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newLoan(principal int64, aprBps int64, termDays int) domain.Loan {
	return domain.Loan{
		ID:              "loan-1",
		UserID:          "alice",
		Principal:       money.New(principal),
		AprBps:          aprBps,
		TermDays:        termDays,
		StartAt:         start,
		DueAt:           utils.CalculateDueDate(start, termDays),
		AccruedInterest: money.Zero,
		PaidPrincipal:   money.Zero,
		PaidInterest:    money.Zero,
		Status:          domain.LoanStatusActive,
		LastAccrualAt:   start,
	}
}

func TestAccrueInterest(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		expectedDays  int64
		expectedDelta int64
	}{
		{"same instant", start, 0, 0},
		{"partial day", start.Add(23 * time.Hour), 0, 0},
		{"one day", start.Add(24 * time.Hour), 1, 328},
		{"one day and a half", start.Add(36 * time.Hour), 1, 328},
		{"ten days", start.AddDate(0, 0, 10), 10, 3287},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(1_000_000, 1200, 10)

			got := AccrueInterest(loan, tt.now)

			assert.Equal(t, tt.expectedDays, got.Days)
			assert.True(t, got.Delta.Equal(money.New(tt.expectedDelta)), "delta %s", got.Delta)
			assert.True(t, got.Loan.LastAccrualAt.Equal(utils.AddDays(start, tt.expectedDays)))
			assert.Equal(t, int64(1200), got.Loan.AprBps)
		})
	}
}

func TestAccrueInterest_IdempotentWithinDay(t *testing.T) {
	loan := newLoan(1_000_000, 1200, 10)
	now := start.Add(30 * time.Hour)

	first := AccrueInterest(loan, now)
	require.True(t, first.Delta.IsPositive())

	second := AccrueInterest(first.Loan, now)
	assert.True(t, second.Delta.IsZero())
	assert.True(t, second.Loan.AccruedInterest.Equal(first.Loan.AccruedInterest))
	assert.True(t, second.Loan.LastAccrualAt.Equal(first.Loan.LastAccrualAt))

	// Crossing the next bucket boundary accrues exactly one more day.
	third := AccrueInterest(first.Loan, start.Add(48*time.Hour))
	assert.Equal(t, int64(1), third.Days)
}

func TestAccrueInterest_LatePenalty(t *testing.T) {
	loan := newLoan(1_000_000, 1200, 10)
	loan.LastAccrualAt = loan.DueAt

	got := AccrueInterest(loan, loan.DueAt.AddDate(0, 0, 3))

	assert.Equal(t, int64(1275), got.EffectiveAprBps)
	assert.True(t, got.Delta.Equal(money.New(1047)), "delta %s", got.Delta)
	assert.Equal(t, int64(1200), got.Loan.AprBps)
}

func TestLatePenaltyBps_Capped(t *testing.T) {
	loan := newLoan(1000, 1200, 10)

	assert.Equal(t, int64(0), DefaultPolicy.LatePenaltyBps(loan, loan.DueAt))
	assert.Equal(t, int64(250), DefaultPolicy.LatePenaltyBps(loan, loan.DueAt.AddDate(0, 0, 10)))
	assert.Equal(t, int64(2500), DefaultPolicy.LatePenaltyBps(loan, loan.DueAt.AddDate(0, 0, 200)))
}

func TestAccrueInterest_NoOpForClosedLoans(t *testing.T) {
	forgiven := newLoan(1000, 1200, 10)
	forgiven.Status = domain.LoanStatusForgiven

	paid := newLoan(1000, 1200, 10)
	paid.PaidPrincipal = money.New(1000)

	later := start.AddDate(0, 0, 30)
	assert.True(t, AccrueInterest(forgiven, later).Delta.IsZero())
	assert.True(t, AccrueInterest(paid, later).Delta.IsZero())
}

func TestStatus(t *testing.T) {
	loan := newLoan(1000, 1200, 10)

	tests := []struct {
		name     string
		now      time.Time
		expected domain.LoanStatus
	}{
		{"before due", start.AddDate(0, 0, 5), domain.LoanStatusActive},
		{"at due", loan.DueAt, domain.LoanStatusActive},
		{"one ms after due", loan.DueAt.Add(time.Millisecond), domain.LoanStatusLate},
		{"twenty days past due", loan.DueAt.AddDate(0, 0, 20), domain.LoanStatusLate},
		{"almost twenty one days past due", loan.DueAt.AddDate(0, 0, 21).Add(-time.Millisecond), domain.LoanStatusLate},
		{"twenty one days past due", loan.DueAt.AddDate(0, 0, 21), domain.LoanStatusDefaulted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Status(loan, tt.now))
		})
	}
}

func TestStatus_PaidAndForgiven(t *testing.T) {
	loan := newLoan(1000, 1200, 10)
	loan.AccruedInterest = money.New(10)
	loan.PaidInterest = money.New(10)
	loan.PaidPrincipal = money.New(1000)
	assert.Equal(t, domain.LoanStatusPaid, Status(loan, start.AddDate(1, 0, 0)))

	loan.Status = domain.LoanStatusForgiven
	assert.Equal(t, domain.LoanStatusForgiven, Status(loan, start))
}

func TestPay(t *testing.T) {
	tests := []struct {
		name              string
		amount            int64
		expectedInterest  int64
		expectedPrincipal int64
		expectedRemaining int64
		expectedExcess    int64
	}{
		{"interest only", 60, 60, 0, 1040, 0},
		{"interest then principal", 300, 100, 200, 800, 0},
		{"exact payoff", 1100, 100, 1000, 0, 0},
		{"overpay drops excess", 1600, 100, 1000, 0, 500},
		{"zero", 0, 0, 0, 1100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(1000, 1200, 10)
			loan.AccruedInterest = money.New(100)

			got := Pay(loan, money.New(tt.amount))

			assert.True(t, got.Interest.Equal(money.New(tt.expectedInterest)), "interest %s", got.Interest)
			assert.True(t, got.Principal.Equal(money.New(tt.expectedPrincipal)), "principal %s", got.Principal)
			assert.True(t, got.Remaining.Equal(money.New(tt.expectedRemaining)), "remaining %s", got.Remaining)
			assert.True(t, got.Excess.Equal(money.New(tt.expectedExcess)), "excess %s", got.Excess)
			assert.True(t, got.Loan.PaidInterest.LessThanOrEqual(got.Loan.AccruedInterest))
			assert.True(t, got.Loan.PaidPrincipal.LessThanOrEqual(got.Loan.Principal))
		})
	}
}

func TestPay_NeverOverAllocates(t *testing.T) {
	loan := newLoan(1000, 1200, 10)
	loan.AccruedInterest = money.New(37)
	loan.PaidInterest = money.New(5)
	loan.PaidPrincipal = money.New(250)
	remaining := loan.Remaining()

	got := Pay(loan, remaining.Add(money.New(500)))

	assert.True(t, got.Applied().Equal(remaining))
	assert.True(t, got.Excess.Equal(money.New(500)))
	assert.True(t, got.Remaining.IsZero())
}

func TestPay_ForgivenLoan(t *testing.T) {
	loan := newLoan(1000, 1200, 10)
	loan.Status = domain.LoanStatusForgiven

	got := Pay(loan, money.New(10))
	assert.True(t, got.Applied().IsZero())
	assert.True(t, got.Excess.Equal(money.New(10)))
}
