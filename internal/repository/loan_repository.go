package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

const loanColumns = `id, user_id, principal, apr_bps, term_days, start_ts, due_ts, accrued_interest,
	paid_principal, paid_interest, status, last_accrual_ts, last_reminder_ts, reminder_count, created_at, updated_at`

type loanRow struct {
	ID              string       `db:"id"`
	UserID          string       `db:"user_id"`
	Principal       money.Amount `db:"principal"`
	AprBps          int64        `db:"apr_bps"`
	TermDays        int          `db:"term_days"`
	StartTS         int64        `db:"start_ts"`
	DueTS           int64        `db:"due_ts"`
	AccruedInterest money.Amount `db:"accrued_interest"`
	PaidPrincipal   money.Amount `db:"paid_principal"`
	PaidInterest    money.Amount `db:"paid_interest"`
	Status          string       `db:"status"`
	LastAccrualTS   int64        `db:"last_accrual_ts"`
	LastReminderTS  int64        `db:"last_reminder_ts"`
	ReminderCount   int          `db:"reminder_count"`
	CreatedAt       int64        `db:"created_at"`
	UpdatedAt       int64        `db:"updated_at"`
}

func (r loanRow) toDomain() *domain.Loan {
	return &domain.Loan{
		ID:              r.ID,
		UserID:          r.UserID,
		Principal:       r.Principal,
		AprBps:          r.AprBps,
		TermDays:        r.TermDays,
		StartAt:         utils.FromMillis(r.StartTS),
		DueAt:           utils.FromMillis(r.DueTS),
		AccruedInterest: r.AccruedInterest,
		PaidPrincipal:   r.PaidPrincipal,
		PaidInterest:    r.PaidInterest,
		Status:          domain.LoanStatus(r.Status),
		LastAccrualAt:   utils.FromMillis(r.LastAccrualTS),
		LastReminderAt:  utils.FromMillis(r.LastReminderTS),
		ReminderCount:   r.ReminderCount,
		CreatedAt:       utils.FromMillis(r.CreatedAt),
		UpdatedAt:       utils.FromMillis(r.UpdatedAt),
	}
}

type loanRepository struct {
	db sqlx.ExtContext
}

// NewLoanRepository binds the repository to a tenant database or transaction.
func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := r.db.Rebind(`
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.UserID,
		loan.Principal,
		loan.AprBps,
		loan.TermDays,
		utils.ToMillis(loan.StartAt),
		utils.ToMillis(loan.DueAt),
		loan.AccruedInterest,
		loan.PaidPrincipal,
		loan.PaidInterest,
		string(loan.Status),
		utils.ToMillis(loan.LastAccrualAt),
		utils.ToMillis(loan.LastReminderAt),
		loan.ReminderCount,
		utils.ToMillis(loan.CreatedAt),
		utils.ToMillis(loan.UpdatedAt),
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE id = ?`)

	var row loanRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, loanID); err != nil {
		return nil, err
	}

	return row.toDomain(), nil
}

func (r *loanRepository) Delete(ctx context.Context, loanID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM loans WHERE id = ?`), loanID)
	return err
}

func (r *loanRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE user_id = ?
		ORDER BY created_at, id
	`)

	return r.selectLoans(ctx, query, userID)
}

func (r *loanRepository) SaveAccrual(ctx context.Context, loan, prev *domain.Loan) (bool, error) {
	query := r.db.Rebind(`
		UPDATE loans
		SET accrued_interest = ?, last_accrual_ts = ?, status = ?, updated_at = ?
		WHERE id = ? AND last_accrual_ts = ? AND accrued_interest = ?
			AND paid_principal = ? AND paid_interest = ? AND status = ?
	`)

	res, err := r.db.ExecContext(ctx, query,
		loan.AccruedInterest,
		utils.ToMillis(loan.LastAccrualAt),
		string(loan.Status),
		utils.ToMillis(loan.UpdatedAt),
		loan.ID,
		utils.ToMillis(prev.LastAccrualAt),
		prev.AccruedInterest,
		prev.PaidPrincipal,
		prev.PaidInterest,
		string(prev.Status),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *loanRepository) SavePayment(ctx context.Context, loan *domain.Loan, prevAccrued money.Amount) (bool, error) {
	query := r.db.Rebind(`
		UPDATE loans
		SET paid_interest = ?, paid_principal = ?, status = ?, updated_at = ?
		WHERE id = ? AND accrued_interest = ? AND status <> ?
	`)

	res, err := r.db.ExecContext(ctx, query,
		loan.PaidInterest,
		loan.PaidPrincipal,
		string(loan.Status),
		utils.ToMillis(loan.UpdatedAt),
		loan.ID,
		prevAccrued,
		string(domain.LoanStatusForgiven),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *loanRepository) ForgiveByUser(ctx context.Context, userID string, at time.Time) (int, error) {
	query := r.db.Rebind(`
		UPDATE loans
		SET status = ?, accrued_interest = paid_interest, paid_principal = principal, updated_at = ?
		WHERE user_id = ? AND status IN (?, ?, ?)
	`)

	res, err := r.db.ExecContext(ctx, query,
		string(domain.LoanStatusForgiven),
		utils.ToMillis(at),
		userID,
		string(domain.LoanStatusActive),
		string(domain.LoanStatusLate),
		string(domain.LoanStatusDefaulted),
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (r *loanRepository) ReminderCandidates(ctx context.Context, dueBefore time.Time) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status IN (?, ?) AND due_ts <= ?
		ORDER BY due_ts, id
	`)

	return r.selectLoans(ctx, query,
		string(domain.LoanStatusActive),
		string(domain.LoanStatusLate),
		utils.ToMillis(dueBefore),
	)
}

func (r *loanRepository) MarkReminded(ctx context.Context, loanID string, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE loans
		SET last_reminder_ts = ?, reminder_count = reminder_count + 1, updated_at = ?
		WHERE id = ?
	`)

	ms := utils.ToMillis(at)
	_, err := r.db.ExecContext(ctx, query, ms, ms, loanID)
	return err
}

func (r *loanRepository) selectLoans(ctx context.Context, query string, args ...interface{}) ([]*domain.Loan, error) {
	var rows []loanRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toDomain())
	}
	return loans, nil
}
