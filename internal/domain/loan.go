package domain

import (
	"time"

	"github.com/segyhp/guild-ledger/internal/money"
)

// LoanStatus is a cached projection of the loan fields and the current time.
// Only LoanStatusForgiven is authoritative once written.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusLate      LoanStatus = "late"
	LoanStatusDefaulted LoanStatus = "defaulted"
	LoanStatusPaid      LoanStatus = "paid"
	LoanStatusForgiven  LoanStatus = "forgiven"
)

// IsTerminal reports whether the loan is closed to payments and forgiveness.
// A defaulted loan is still open.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusPaid || s == LoanStatusForgiven
}

// HasDebt reports whether a loan in this status can still owe money.
func (s LoanStatus) HasDebt() bool {
	return !s.IsTerminal()
}

// Loan represents a short-term loan credited to a user's wallet.
type Loan struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Principal       money.Amount `json:"principal"`
	AprBps          int64        `json:"apr_bps"`
	TermDays        int          `json:"term_days"`
	StartAt         time.Time    `json:"start_at"`
	DueAt           time.Time    `json:"due_at"`
	AccruedInterest money.Amount `json:"accrued_interest"`
	PaidPrincipal   money.Amount `json:"paid_principal"`
	PaidInterest    money.Amount `json:"paid_interest"`
	Status          LoanStatus   `json:"status"`
	LastAccrualAt   time.Time    `json:"last_accrual_at"`
	LastReminderAt  time.Time    `json:"last_reminder_at,omitempty"`
	ReminderCount   int          `json:"reminder_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// RemainingPrincipal is principal not yet repaid.
func (l *Loan) RemainingPrincipal() money.Amount {
	return money.Max(l.Principal.Sub(l.PaidPrincipal), money.Zero)
}

// OwedInterest is accrued interest not yet repaid.
func (l *Loan) OwedInterest() money.Amount {
	return money.Max(l.AccruedInterest.Sub(l.PaidInterest), money.Zero)
}

// Remaining is the total debt still owed.
func (l *Loan) Remaining() money.Amount {
	return l.RemainingPrincipal().Add(l.OwedInterest())
}

// UserLoanPrefs holds per-user reminder preferences and the credit score
// used for underwriting.
type UserLoanPrefs struct {
	UserID      string    `json:"user_id"`
	Remind      bool      `json:"remind"`
	SnoozeUntil time.Time `json:"snooze_until,omitempty"`
	CreditScore int       `json:"credit_score"`
}

// Snoozed reports whether reminders are suppressed at now.
func (p UserLoanPrefs) Snoozed(now time.Time) bool {
	return !p.SnoozeUntil.IsZero() && now.Before(p.SnoozeUntil)
}

// PaymentResult describes how a payment was allocated.
type PaymentResult struct {
	Loan          *Loan        `json:"loan"`
	PaidInterest  money.Amount `json:"paid_interest"`
	PaidPrincipal money.Amount `json:"paid_principal"`
	Remaining     money.Amount `json:"remaining"`
}

// Applied is the part of the payment that reduced the debt.
func (r PaymentResult) Applied() money.Amount {
	return r.PaidInterest.Add(r.PaidPrincipal)
}

// Offer is one loan proposal produced for a credit score.
type Offer struct {
	Principal money.Amount `json:"principal"`
	AprBps    int64        `json:"apr_bps"`
	TermDays  int          `json:"term_days"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	Principal string `json:"principal" validate:"required"`
	AprBps    int64  `json:"apr_bps" validate:"gte=0,lte=100000"`
	TermDays  int    `json:"term_days" validate:"required,gt=0,lte=365"`
}

type ApplyLoanRequest struct {
	Principal string `json:"principal" validate:"required"`
}

type PaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type PrefsRequest struct {
	Remind      *bool     `json:"remind" validate:"required"`
	SnoozeUntil time.Time `json:"snooze_until"`
}

type CreditScoreRequest struct {
	CreditScore int `json:"credit_score" validate:"required,gte=300,lte=850"`
}

// ForgiveResetRequest resets the score to CreditScore, or to the configured
// default when it is zero.
type ForgiveResetRequest struct {
	CreditScore int `json:"credit_score" validate:"omitempty,gte=300,lte=850"`
}

type ReminderChannelRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

type ForgiveResponse struct {
	UserID   string `json:"user_id"`
	Forgiven int    `json:"forgiven"`
}

type DebtResponse struct {
	UserID               string       `json:"user_id"`
	ActiveDebt           money.Amount `json:"active_debt"`
	OutstandingPrincipal money.Amount `json:"outstanding_principal"`
	OpenLoans            int          `json:"open_loans"`
	Delinquent           bool         `json:"delinquent"`
}
