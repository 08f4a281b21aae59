package domain

import (
	"time"

	"github.com/segyhp/guild-ledger/internal/money"
)

// Balance is a user's wallet within one tenant.
type Balance struct {
	UserID    string       `json:"user_id"`
	Amount    money.Amount `json:"amount"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Transaction is one append-only wallet log entry.
type Transaction struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Delta     money.Amount `json:"delta"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

// TransferResult holds both balances after a transfer committed.
type TransferResult struct {
	FromBalance money.Amount `json:"from_balance"`
	ToBalance   money.Amount `json:"to_balance"`
}

// Reconciliation compares the stored balance with the sum of its log.
type Reconciliation struct {
	UserID   string       `json:"user_id"`
	Balance  money.Amount `json:"balance"`
	LogTotal money.Amount `json:"log_total"`
	Entries  int          `json:"entries"`
}

// Consistent reports whether balance equals the log sum.
func (r Reconciliation) Consistent() bool {
	return r.Balance.Equal(r.LogTotal)
}

// DTOs for requests and responses

type AdjustRequest struct {
	Delta  string `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}

type TransferRequest struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required,nefield=From"`
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"max=200"`
}

type BalanceResponse struct {
	UserID  string       `json:"user_id"`
	Balance money.Amount `json:"balance"`
	Display string       `json:"display"`
}
