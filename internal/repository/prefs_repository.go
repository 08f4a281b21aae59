package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

// DefaultCreditScore is used for users without a prefs row.
const DefaultCreditScore = 600

type prefsRow struct {
	UserID      string `db:"user_id"`
	Remind      int    `db:"remind"`
	SnoozeUntil int64  `db:"snooze_until"`
	CreditScore int    `db:"credit_score"`
}

type prefsRepository struct {
	db           sqlx.ExtContext
	defaultScore int
}

// NewPrefsRepository binds the repository to a tenant database or transaction.
// defaultScore is reported for users that have never been scored; values
// <= 0 fall back to DefaultCreditScore.
func NewPrefsRepository(db sqlx.ExtContext, defaultScore int) PrefsRepository {
	if defaultScore <= 0 {
		defaultScore = DefaultCreditScore
	}
	return &prefsRepository{db: db, defaultScore: defaultScore}
}

func (r *prefsRepository) Get(ctx context.Context, userID string) (*domain.UserLoanPrefs, error) {
	query := r.db.Rebind(`
		SELECT user_id, remind, snooze_until, credit_score
		FROM loan_prefs
		WHERE user_id = ?
	`)

	var row prefsRow
	err := sqlx.GetContext(ctx, r.db, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserLoanPrefs{UserID: userID, Remind: true, CreditScore: r.defaultScore}, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.UserLoanPrefs{
		UserID:      row.UserID,
		Remind:      row.Remind != 0,
		SnoozeUntil: utils.FromMillis(row.SnoozeUntil),
		CreditScore: row.CreditScore,
	}, nil
}

func (r *prefsRepository) Upsert(ctx context.Context, prefs *domain.UserLoanPrefs) error {
	query := r.db.Rebind(`
		INSERT INTO loan_prefs (user_id, remind, snooze_until, credit_score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET remind = excluded.remind, snooze_until = excluded.snooze_until
	`)

	remind := 0
	if prefs.Remind {
		remind = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID,
		remind,
		utils.ToMillis(prefs.SnoozeUntil),
		r.defaultScore,
	)
	return err
}

func (r *prefsRepository) SetCreditScore(ctx context.Context, userID string, score int) error {
	query := r.db.Rebind(`
		INSERT INTO loan_prefs (user_id, remind, snooze_until, credit_score)
		VALUES (?, 1, 0, ?)
		ON CONFLICT (user_id) DO UPDATE SET credit_score = excluded.credit_score
	`)

	_, err := r.db.ExecContext(ctx, query, userID, score)
	return err
}

type settingsRepository struct {
	db sqlx.ExtContext
}

// NewSettingsRepository binds the repository to a tenant database or transaction.
func NewSettingsRepository(db sqlx.ExtContext) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := sqlx.GetContext(ctx, r.db, &value, r.db.Rebind(`SELECT value FROM settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query := r.db.Rebind(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`)

	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}
