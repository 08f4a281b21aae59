// Package calculator holds the pure loan arithmetic: interest accrual, status
// derivation, payment allocation and offer generation. Nothing here performs
// I/O or reads the clock.
package calculator

import (
	"time"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
	// DaysPerYear converts an APR into a daily rate.
	DaysPerYear = 365
)

// Policy holds the late-penalty parameters.
type Policy struct {
	LatePenaltyBpsPerDay int64
	LatePenaltyCapBps    int64
}

// DefaultPolicy adds 25 bps per overdue day, capped at 2500 bps.
var DefaultPolicy = Policy{
	LatePenaltyBpsPerDay: 25,
	LatePenaltyCapBps:    2500,
}

// Accrual is the outcome of AccrueInterest.
type Accrual struct {
	Loan            domain.Loan
	Delta           money.Amount
	Days            int64
	EffectiveAprBps int64
}

// AccrueInterest runs DefaultPolicy.AccrueInterest.
func AccrueInterest(loan domain.Loan, now time.Time) Accrual {
	return DefaultPolicy.AccrueInterest(loan, now)
}

// AccrueInterest adds interest for every whole day since LastAccrualAt.
// LastAccrualAt advances by exactly the days accrued, so calling again within
// the same day bucket yields a zero delta.
func (p Policy) AccrueInterest(loan domain.Loan, now time.Time) Accrual {
	result := Accrual{Loan: loan, Delta: money.Zero, EffectiveAprBps: loan.AprBps}

	if loan.Status == domain.LoanStatusForgiven {
		return result
	}
	remaining := loan.RemainingPrincipal()
	if !remaining.IsPositive() {
		return result
	}

	days := utils.WholeDaysBetween(loan.LastAccrualAt, now)
	if days == 0 {
		return result
	}

	effective := loan.AprBps + p.LatePenaltyBps(loan, now)
	numerator := remaining.Mul(money.New(effective)).Mul(money.New(days))
	delta, _ := numerator.Div(money.New(BpsDenominator * DaysPerYear))

	result.Days = days
	result.EffectiveAprBps = effective
	result.Delta = delta
	result.Loan.AccruedInterest = loan.AccruedInterest.Add(delta)
	result.Loan.LastAccrualAt = utils.AddDays(loan.LastAccrualAt, days)
	return result
}

// LatePenaltyBps is the surcharge for the days the loan is overdue at now.
func (p Policy) LatePenaltyBps(loan domain.Loan, now time.Time) int64 {
	overdue := DaysPastDue(loan, now)
	if overdue <= 0 {
		return 0
	}
	penalty := overdue * p.LatePenaltyBpsPerDay
	if penalty > p.LatePenaltyCapBps {
		return p.LatePenaltyCapBps
	}
	return penalty
}

// DaysPastDue is the number of whole days since DueAt, or 0 if not overdue.
func DaysPastDue(loan domain.Loan, now time.Time) int64 {
	return utils.WholeDaysBetween(loan.DueAt, now)
}

// Status derives the loan status from its fields and now. Forgiven is sticky.
func Status(loan domain.Loan, now time.Time) domain.LoanStatus {
	if loan.Status == domain.LoanStatusForgiven {
		return domain.LoanStatusForgiven
	}
	if !loan.Remaining().IsPositive() {
		return domain.LoanStatusPaid
	}
	if !utils.IsOverdue(loan.DueAt, now) {
		return domain.LoanStatusActive
	}
	if DaysPastDue(loan, now) <= int64(loan.TermDays)*2 {
		return domain.LoanStatusLate
	}
	return domain.LoanStatusDefaulted
}

// Allocation is the outcome of Pay.
type Allocation struct {
	Loan      domain.Loan
	Interest  money.Amount
	Principal money.Amount
	Remaining money.Amount
	// Excess is the part of the payment beyond the debt. It is dropped.
	Excess money.Amount
}

// Applied is Interest plus Principal.
func (a Allocation) Applied() money.Amount {
	return a.Interest.Add(a.Principal)
}

// Pay allocates amount to owed interest first, then principal. Anything
// beyond the remaining debt is reported as Excess and not applied.
func Pay(loan domain.Loan, amount money.Amount) Allocation {
	result := Allocation{
		Loan:      loan,
		Interest:  money.Zero,
		Principal: money.Zero,
		Remaining: loan.Remaining(),
		Excess:    money.Zero,
	}
	if !amount.IsPositive() || loan.Status == domain.LoanStatusForgiven {
		if amount.IsPositive() {
			result.Excess = amount
		}
		return result
	}

	towardInterest := money.Min(amount, loan.OwedInterest())
	towardPrincipal := money.Min(amount.Sub(towardInterest), loan.RemainingPrincipal())

	result.Interest = towardInterest
	result.Principal = towardPrincipal
	result.Excess = amount.Sub(towardInterest).Sub(towardPrincipal)
	result.Loan.PaidInterest = loan.PaidInterest.Add(towardInterest)
	result.Loan.PaidPrincipal = loan.PaidPrincipal.Add(towardPrincipal)
	result.Remaining = result.Loan.Remaining()
	return result
}
