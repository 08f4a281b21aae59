package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/keylock"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/internal/repository"
	"github.com/segyhp/guild-ledger/internal/storage"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// BalanceCache is an optional read cache in front of the balances table.
type BalanceCache interface {
	Get(ctx context.Context, tenant, userID string) (money.Amount, bool, error)
	Set(ctx context.Context, tenant, userID string, amount money.Amount) error
	Invalidate(ctx context.Context, tenant, userID string) error
}

// WalletService is the ledger: exact per-user balances with an append-only
// log. Every mutation holds the user's key lock and runs in one transaction.
type WalletService struct {
	stores *storage.Manager
	locks  *keylock.Registry
	cache  BalanceCache
	logger *slog.Logger
	now    func() time.Time
}

// NewWalletService wires the ledger. cache may be nil.
func NewWalletService(stores *storage.Manager, locks *keylock.Registry, cache BalanceCache, logger *slog.Logger) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		stores: stores,
		locks:  locks,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func walletKey(tenant, userID string) string {
	return keylock.Key(tenant, "wallet:"+userID)
}

// GetBalance returns the balance, or zero for users without a row. No row is created.
func (s *WalletService) GetBalance(ctx context.Context, tenant, userID string) (money.Amount, error) {
	if userID == "" {
		return money.Zero, customErrors.WrapValidation("user id is required")
	}

	if s.cache != nil {
		amount, found, err := s.cache.Get(ctx, tenant, userID)
		if err != nil {
			s.logger.Warn("balance cache read failed", "tenant", tenant, "user", userID, "error", err)
		} else if found {
			return amount, nil
		}

		// Fill the cache under the wallet lock so a concurrent adjust cannot
		// be overwritten by this older read.
		release, err := s.locks.Lock(ctx, walletKey(tenant, userID))
		if err != nil {
			return money.Zero, err
		}
		defer release()
	}

	var amount money.Amount
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		amount, _, err = repository.NewBalanceRepository(db).Get(ctx, userID)
		return err
	})
	if err != nil {
		return money.Zero, wrapStorage(err)
	}

	s.refreshCache(ctx, tenant, userID, amount)
	return amount, nil
}

// AdjustBalance applies delta and returns the new balance. It fails with
// INSUFFICIENT_BALANCE when the result would be negative.
func (s *WalletService) AdjustBalance(ctx context.Context, tenant, userID string, delta money.Amount, reason string) (money.Amount, error) {
	if userID == "" {
		return money.Zero, customErrors.WrapValidation("user id is required")
	}
	if !delta.IsInteger() {
		return money.Zero, customErrors.WrapValidation("amount %s is not a whole number of minor units", delta)
	}

	release, err := s.locks.Lock(ctx, walletKey(tenant, userID))
	if err != nil {
		return money.Zero, err
	}
	defer release()

	var next money.Amount
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return storage.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			var err error
			next, err = s.adjustTx(ctx, tx, userID, delta, reason, s.now())
			return err
		})
	})
	if err != nil {
		return money.Zero, wrapStorage(err)
	}

	s.refreshCache(ctx, tenant, userID, next)
	return next, nil
}

// Transfer moves amount between two users atomically. Both wallet keys are
// locked in sorted order whatever the direction of the call.
func (s *WalletService) Transfer(ctx context.Context, tenant, fromID, toID string, amount money.Amount, reason string) (*domain.TransferResult, error) {
	if fromID == "" || toID == "" {
		return nil, customErrors.WrapValidation("both users are required")
	}
	if fromID == toID {
		return nil, customErrors.WrapValidation("cannot transfer to the same user")
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return nil, customErrors.WrapValidation("transfer amount must be a positive whole number, got %s", amount)
	}

	release, err := s.locks.LockMany(ctx, walletKey(tenant, fromID), walletKey(tenant, toID))
	if err != nil {
		return nil, err
	}
	defer release()

	if reason == "" {
		reason = "transfer"
	}

	result := &domain.TransferResult{}
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return storage.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			at := s.now()

			from, err := s.adjustTx(ctx, tx, fromID, amount.Neg(), fmt.Sprintf("%s to %s", reason, toID), at)
			if err != nil {
				return err
			}
			to, err := s.adjustTx(ctx, tx, toID, amount, fmt.Sprintf("%s from %s", reason, fromID), at)
			if err != nil {
				return err
			}

			result.FromBalance = from
			result.ToBalance = to
			return nil
		})
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.refreshCache(ctx, tenant, fromID, result.FromBalance)
	s.refreshCache(ctx, tenant, toID, result.ToBalance)
	return result, nil
}

// History returns the newest log entries for a user.
func (s *WalletService) History(ctx context.Context, tenant, userID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var txns []*domain.Transaction
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		txns, err = repository.NewBalanceRepository(db).ListTransactions(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return txns, nil
}

// Reconcile compares the stored balance with the exact sum of the log.
func (s *WalletService) Reconcile(ctx context.Context, tenant, userID string) (*domain.Reconciliation, error) {
	release, err := s.locks.Lock(ctx, walletKey(tenant, userID))
	if err != nil {
		return nil, err
	}
	defer release()

	rec := &domain.Reconciliation{UserID: userID}
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		repo := repository.NewBalanceRepository(db)

		balance, _, err := repo.Get(ctx, userID)
		if err != nil {
			return err
		}
		total, entries, err := repo.SumTransactions(ctx, userID)
		if err != nil {
			return err
		}

		rec.Balance = balance
		rec.LogTotal = total
		rec.Entries = entries
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	if !rec.Consistent() {
		s.logger.Error("balance does not match transaction log",
			"tenant", tenant, "user", userID, "balance", rec.Balance, "log_total", rec.LogTotal)
	}
	return rec, nil
}

// adjustTx applies delta inside an open transaction. The caller holds the
// user's wallet lock. A zero delta writes nothing.
func (s *WalletService) adjustTx(ctx context.Context, q sqlx.ExtContext, userID string, delta money.Amount, reason string, at time.Time) (money.Amount, error) {
	repo := repository.NewBalanceRepository(q)

	current, _, err := repo.Get(ctx, userID)
	if err != nil {
		return money.Zero, err
	}
	if delta.IsZero() {
		return current, nil
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return money.Zero, customErrors.WrapInsufficientBalance(userID, current.String(), delta.String())
	}

	if err := repo.Upsert(ctx, userID, next, at); err != nil {
		return money.Zero, err
	}
	err = repo.AppendTransaction(ctx, &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: utils.TruncateMillis(at),
	})
	if err != nil {
		return money.Zero, err
	}

	return next, nil
}

func (s *WalletService) refreshCache(ctx context.Context, tenant, userID string, amount money.Amount) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, tenant, userID, amount); err != nil {
		s.logger.Warn("balance cache write failed", "tenant", tenant, "user", userID, "error", err)
		// A stale entry is worse than none.
		if err := s.cache.Invalidate(ctx, tenant, userID); err != nil {
			s.logger.Warn("balance cache invalidate failed", "tenant", tenant, "user", userID, "error", err)
		}
	}
}
