package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

type transactionRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Delta     money.Amount `db:"delta"`
	Reason    string       `db:"reason"`
	CreatedAt int64        `db:"created_at"`
}

type balanceRepository struct {
	db sqlx.ExtContext
}

// NewBalanceRepository binds the repository to a tenant database or transaction.
func NewBalanceRepository(db sqlx.ExtContext) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) Get(ctx context.Context, userID string) (money.Amount, bool, error) {
	query := r.db.Rebind(`SELECT amount FROM balances WHERE user_id = ?`)

	var amount money.Amount
	err := sqlx.GetContext(ctx, r.db, &amount, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero, false, nil
	}
	if err != nil {
		return money.Zero, false, err
	}

	return amount, true, nil
}

func (r *balanceRepository) Upsert(ctx context.Context, userID string, amount money.Amount, at time.Time) error {
	query := r.db.Rebind(`
		INSERT INTO balances (user_id, amount, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
	`)

	_, err := r.db.ExecContext(ctx, query, userID, amount, utils.ToMillis(at))
	return err
}

func (r *balanceRepository) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := r.db.Rebind(`
		INSERT INTO transactions (id, user_id, delta, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.Delta,
		txn.Reason,
		utils.ToMillis(txn.CreatedAt),
	)

	return err
}

func (r *balanceRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, delta, reason, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)

	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, limit); err != nil {
		return nil, err
	}

	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, &domain.Transaction{
			ID:        row.ID,
			UserID:    row.UserID,
			Delta:     row.Delta,
			Reason:    row.Reason,
			CreatedAt: utils.FromMillis(row.CreatedAt),
		})
	}
	return txns, nil
}

// SumTransactions adds the deltas in Go; SQL SUM over TEXT would go through floats.
func (r *balanceRepository) SumTransactions(ctx context.Context, userID string) (money.Amount, int, error) {
	query := r.db.Rebind(`SELECT delta FROM transactions WHERE user_id = ?`)

	var deltas []money.Amount
	if err := sqlx.SelectContext(ctx, r.db, &deltas, query, userID); err != nil {
		return money.Zero, 0, err
	}

	return money.Sum(deltas...), len(deltas), nil
}
