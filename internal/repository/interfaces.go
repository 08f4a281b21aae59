package repository

import (
	"context"
	"time"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
)

// BalanceRepository defines the interface for wallet data operations
type BalanceRepository interface {
	// Get returns the stored balance; found is false when the user has no row
	Get(ctx context.Context, userID string) (amount money.Amount, found bool, err error)

	// Upsert writes the balance row
	Upsert(ctx context.Context, userID string, amount money.Amount, at time.Time) error

	// AppendTransaction adds an entry to the wallet log
	AppendTransaction(ctx context.Context, txn *domain.Transaction) error

	// ListTransactions returns the newest log entries first
	ListTransactions(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error)

	// SumTransactions totals every log entry for a user
	SumTransactions(ctx context.Context, userID string) (total money.Amount, entries int, err error)
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID; sql.ErrNoRows when missing
	GetByID(ctx context.Context, loanID string) (*domain.Loan, error)

	// Delete removes a loan row
	Delete(ctx context.Context, loanID string) error

	// ListByUser returns a user's loans, oldest first
	ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error)

	// SaveAccrual persists accrual fields and status only if the row still
	// matches prev; saved is false when another writer won
	SaveAccrual(ctx context.Context, loan, prev *domain.Loan) (saved bool, err error)

	// SavePayment persists paid fields and status if accrual has not moved
	SavePayment(ctx context.Context, loan *domain.Loan, prevAccrued money.Amount) (saved bool, err error)

	// ForgiveByUser forgives every loan that still carries debt
	ForgiveByUser(ctx context.Context, userID string, at time.Time) (int, error)

	// ReminderCandidates returns open loans due at or before dueBefore
	ReminderCandidates(ctx context.Context, dueBefore time.Time) ([]*domain.Loan, error)

	// MarkReminded records a delivered reminder
	MarkReminded(ctx context.Context, loanID string, at time.Time) error
}

// PrefsRepository defines the interface for per-user loan preferences
type PrefsRepository interface {
	// Get returns stored prefs or the defaults when the user has none
	Get(ctx context.Context, userID string) (*domain.UserLoanPrefs, error)

	// Upsert writes reminder preferences, keeping the credit score
	Upsert(ctx context.Context, prefs *domain.UserLoanPrefs) error

	// SetCreditScore writes the credit score, keeping reminder preferences
	SetCreditScore(ctx context.Context, userID string, score int) error
}

// SettingsRepository defines the interface for tenant-wide settings
type SettingsRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
