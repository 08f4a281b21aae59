package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/guild-ledger/internal/calculator"
	"github.com/segyhp/guild-ledger/internal/config"
	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/keylock"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/internal/repository"
	"github.com/segyhp/guild-ledger/internal/storage"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

const (
	settingReminderChannel = "reminder_channel"

	// compare-and-set writes retried before giving up
	maxWriteAttempts = 3

	maxTermDays = 365
	maxAprBps   = 100_000
)

type LoanService struct {
	stores *storage.Manager
	locks  *keylock.Registry
	wallet *WalletService
	policy calculator.Policy
	cfg    config.LoanConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLoanService(
	stores *storage.Manager,
	locks *keylock.Registry,
	wallet *WalletService,
	cfg config.LoanConfig,
	logger *slog.Logger,
) *LoanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanService{
		stores: stores,
		locks:  locks,
		wallet: wallet,
		policy: calculator.Policy{
			LatePenaltyBpsPerDay: cfg.LatePenaltyBpsPerDay,
			LatePenaltyCapBps:    cfg.LatePenaltyCapBps,
		},
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func loanKey(tenant, loanID string) string {
	return keylock.Key(tenant, "loan:"+loanID)
}

// CreateLoan stores a new active loan without touching the wallet.
func (s *LoanService) CreateLoan(ctx context.Context, tenant, userID string, principal money.Amount, aprBps int64, termDays int) (*domain.Loan, error) {
	if userID == "" {
		return nil, customErrors.WrapValidation("user id is required")
	}
	if !principal.IsPositive() || !principal.IsInteger() {
		return nil, customErrors.WrapValidation("principal must be a positive whole number, got %s", principal)
	}
	if aprBps < 0 || aprBps > maxAprBps {
		return nil, customErrors.WrapValidation("apr_bps must be between 0 and %d", maxAprBps)
	}
	if termDays <= 0 || termDays > maxTermDays {
		return nil, customErrors.WrapValidation("term_days must be between 1 and %d", maxTermDays)
	}

	start := utils.TruncateMillis(s.now())
	loan := &domain.Loan{
		ID:              uuid.NewString(),
		UserID:          userID,
		Principal:       principal,
		AprBps:          aprBps,
		TermDays:        termDays,
		StartAt:         start,
		DueAt:           utils.CalculateDueDate(start, termDays),
		AccruedInterest: money.Zero,
		PaidPrincipal:   money.Zero,
		PaidInterest:    money.Zero,
		Status:          domain.LoanStatusActive,
		LastAccrualAt:   start,
		CreatedAt:       start,
		UpdatedAt:       start,
	}

	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return repository.NewLoanRepository(db).Create(ctx, loan)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	return loan, nil
}

// CreateAndCredit creates a loan, then credits the principal to the wallet
// as a separate locked operation. If the credit fails the loan row is removed.
func (s *LoanService) CreateAndCredit(ctx context.Context, tenant, userID string, principal money.Amount, aprBps int64, termDays int) (*domain.Loan, error) {
	loan, err := s.CreateLoan(ctx, tenant, userID, principal, aprBps, termDays)
	if err != nil {
		return nil, err
	}

	if _, err := s.wallet.AdjustBalance(ctx, tenant, userID, principal, "loan "+loan.ID); err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		delErr := s.stores.Run(cleanupCtx, tenant, func(db *sqlx.DB) error {
			return repository.NewLoanRepository(db).Delete(cleanupCtx, loan.ID)
		})
		if delErr != nil {
			s.logger.Error("failed to remove loan after wallet credit failed",
				"tenant", tenant, "loan", loan.ID, "user", userID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("loan created", "tenant", tenant, "loan", loan.ID, "user", userID,
		"principal", principal, "apr_bps", aprBps, "term_days", termDays)
	return loan, nil
}

// AccrueOnTouch brings a loan up to date at now, persisting only when
// interest accrued or the derived status changed. The stored row is reloaded
// first; loan only identifies it.
func (s *LoanService) AccrueOnTouch(ctx context.Context, tenant string, loan *domain.Loan, now time.Time) (*domain.Loan, error) {
	if now.IsZero() {
		now = s.now()
	}

	var touched *domain.Loan
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		touched, err = s.loadAndTouch(ctx, db, loan.ID, now)
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return touched, nil
}

// touch is the only place where accrual results are written back. loan must
// be freshly read. Writes are compare-and-set on the accrual, paid and status
// fields; a lost race reloads the row.
func (s *LoanService) touch(ctx context.Context, q sqlx.ExtContext, loan *domain.Loan, now time.Time) (*domain.Loan, error) {
	repo := repository.NewLoanRepository(q)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		accrual := s.policy.AccrueInterest(*loan, now)
		next := accrual.Loan
		next.Status = calculator.Status(next, now)

		if accrual.Delta.IsZero() && next.Status == loan.Status {
			return loan, nil
		}

		next.UpdatedAt = utils.TruncateMillis(now)
		saved, err := repo.SaveAccrual(ctx, &next, loan)
		if err != nil {
			return nil, err
		}
		if saved {
			return &next, nil
		}

		loan, err = repo.GetByID(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
	}

	return nil, errConcurrentUpdate
}

// GetLoan loads and touches a loan.
func (s *LoanService) GetLoan(ctx context.Context, tenant, loanID string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		loan, err = s.loadAndTouch(ctx, db, loanID, s.now())
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return loan, nil
}

// ListLoans returns every loan of a user, each touched.
func (s *LoanService) ListLoans(ctx context.Context, tenant, userID string) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		loans, err = s.listAndTouch(ctx, db, userID, s.now())
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return loans, nil
}

// ApplyPayment allocates amount to the loan, interest first. Anything above
// the remaining debt is dropped.
func (s *LoanService) ApplyPayment(ctx context.Context, tenant, loanID string, amount money.Amount) (*domain.PaymentResult, error) {
	if !amount.IsPositive() || !amount.IsInteger() {
		return nil, customErrors.WrapValidation("payment must be a positive whole number, got %s", amount)
	}

	release, err := s.locks.Lock(ctx, loanKey(tenant, loanID))
	if err != nil {
		return nil, err
	}
	defer release()

	var result *domain.PaymentResult
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return storage.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			loan, err := s.loadAndTouch(ctx, tx, loanID, s.now())
			if err != nil {
				return err
			}
			result, err = s.payTx(ctx, tx, loan, amount, s.now())
			return err
		})
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	return result, nil
}

// Repay pays a loan out of the borrower's wallet. Only the applied part of
// amount is debited; the debit and the payment commit together.
func (s *LoanService) Repay(ctx context.Context, tenant, userID, loanID string, amount money.Amount) (*domain.PaymentResult, error) {
	if !amount.IsPositive() || !amount.IsInteger() {
		return nil, customErrors.WrapValidation("payment must be a positive whole number, got %s", amount)
	}

	release, err := s.locks.LockMany(ctx, walletKey(tenant, userID), loanKey(tenant, loanID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result  *domain.PaymentResult
		balance money.Amount
	)
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return storage.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			now := s.now()

			loan, err := s.loadAndTouch(ctx, tx, loanID, now)
			if err != nil {
				return err
			}
			if loan.UserID != userID {
				return customErrors.WrapLoanNotFound(loanID)
			}

			result, err = s.payTx(ctx, tx, loan, amount, now)
			if err != nil {
				return err
			}

			balance, err = s.wallet.adjustTx(ctx, tx, userID, result.Applied().Neg(), "repayment "+loanID, now)
			return err
		})
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.wallet.refreshCache(ctx, tenant, userID, balance)
	return result, nil
}

func (s *LoanService) payTx(ctx context.Context, q sqlx.ExtContext, loan *domain.Loan, amount money.Amount, now time.Time) (*domain.PaymentResult, error) {
	if loan.Status.IsTerminal() {
		return nil, customErrors.WrapLoanClosed(loan.ID, string(loan.Status))
	}

	alloc := calculator.Pay(*loan, amount)
	next := alloc.Loan
	next.Status = calculator.Status(next, now)
	next.UpdatedAt = utils.TruncateMillis(now)

	saved, err := repository.NewLoanRepository(q).SavePayment(ctx, &next, loan.AccruedInterest)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, errConcurrentUpdate
	}

	if alloc.Excess.IsPositive() {
		s.logger.Info("overpayment dropped", "loan", loan.ID, "excess", alloc.Excess)
	}

	return &domain.PaymentResult{
		Loan:          &next,
		PaidInterest:  alloc.Interest,
		PaidPrincipal: alloc.Principal,
		Remaining:     alloc.Remaining,
	}, nil
}

// ForgiveAll forgives every loan of the user that still carries debt and
// returns how many were forgiven. Wallet and credit score are not touched;
// see ForgiveAndReset.
func (s *LoanService) ForgiveAll(ctx context.Context, tenant, userID string) (int, error) {
	var n int
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		n, err = repository.NewLoanRepository(db).ForgiveByUser(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return 0, wrapStorage(err)
	}

	if n > 0 {
		s.logger.Info("loans forgiven", "tenant", tenant, "user", userID, "count", n)
	}
	return n, nil
}

// ForgiveAndReset forgives all loans, zeroes the wallet and sets the credit
// score in one transaction while holding the wallet and loan locks.
func (s *LoanService) ForgiveAndReset(ctx context.Context, tenant, userID string, creditScore int) (*domain.ForgiveResponse, error) {
	if creditScore <= 0 {
		creditScore = s.cfg.DefaultCreditScore
	}

	var loans []*domain.Loan
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		loans, err = repository.NewLoanRepository(db).ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	keys := []string{walletKey(tenant, userID)}
	for _, l := range loans {
		keys = append(keys, loanKey(tenant, l.ID))
	}
	release, err := s.locks.LockMany(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	resp := &domain.ForgiveResponse{UserID: userID}
	err = s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return storage.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			now := s.now()

			n, err := repository.NewLoanRepository(tx).ForgiveByUser(ctx, userID, now)
			if err != nil {
				return err
			}

			balance, _, err := repository.NewBalanceRepository(tx).Get(ctx, userID)
			if err != nil {
				return err
			}
			if _, err := s.wallet.adjustTx(ctx, tx, userID, balance.Neg(), "reset", now); err != nil {
				return err
			}

			if err := repository.NewPrefsRepository(tx, s.cfg.DefaultCreditScore).SetCreditScore(ctx, userID, creditScore); err != nil {
				return err
			}

			resp.Forgiven = n
			return nil
		})
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.wallet.refreshCache(ctx, tenant, userID, money.Zero)
	s.logger.Info("user forgiven and reset", "tenant", tenant, "user", userID,
		"forgiven", resp.Forgiven, "credit_score", creditScore)
	return resp, nil
}

// GetActiveDebt is the total still owed across the user's open loans.
func (s *LoanService) GetActiveDebt(ctx context.Context, tenant, userID string) (money.Amount, error) {
	debt, err := s.Debt(ctx, tenant, userID)
	if err != nil {
		return money.Zero, err
	}
	return debt.ActiveDebt, nil
}

// GetOutstandingPrincipal is the unpaid principal across the user's open loans.
func (s *LoanService) GetOutstandingPrincipal(ctx context.Context, tenant, userID string) (money.Amount, error) {
	debt, err := s.Debt(ctx, tenant, userID)
	if err != nil {
		return money.Zero, err
	}
	return debt.OutstandingPrincipal, nil
}

// HasDelinquent reports whether any loan of the user is late or defaulted.
func (s *LoanService) HasDelinquent(ctx context.Context, tenant, userID string) (bool, error) {
	debt, err := s.Debt(ctx, tenant, userID)
	if err != nil {
		return false, err
	}
	return debt.Delinquent, nil
}

// Debt computes every underwriting aggregate in one pass over touched loans.
func (s *LoanService) Debt(ctx context.Context, tenant, userID string) (*domain.DebtResponse, error) {
	loans, err := s.ListLoans(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}
	summary := summarize(loans)
	summary.UserID = userID
	return &summary, nil
}

func summarize(loans []*domain.Loan) domain.DebtResponse {
	resp := domain.DebtResponse{ActiveDebt: money.Zero, OutstandingPrincipal: money.Zero}
	for _, l := range loans {
		if !l.Status.HasDebt() {
			continue
		}
		resp.ActiveDebt = resp.ActiveDebt.Add(l.Remaining())
		resp.OutstandingPrincipal = resp.OutstandingPrincipal.Add(l.RemainingPrincipal())
		resp.OpenLoans++
		if l.Status == domain.LoanStatusLate || l.Status == domain.LoanStatusDefaulted {
			resp.Delinquent = true
		}
	}
	return resp
}

// Offers returns the loan offers for the user's credit score.
func (s *LoanService) Offers(ctx context.Context, tenant, userID string, amounts []money.Amount) ([]domain.Offer, error) {
	prefs, err := s.GetPrefs(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}
	return calculator.Schedule(amounts, prefs.CreditScore), nil
}

// Apply underwrites a loan request and, when approved, creates and credits
// the loan priced by the user's credit tier.
func (s *LoanService) Apply(ctx context.Context, tenant, userID string, principal money.Amount) (*domain.Loan, error) {
	if !principal.IsPositive() || !principal.IsInteger() {
		return nil, customErrors.WrapValidation("principal must be a positive whole number, got %s", principal)
	}

	prefs, err := s.GetPrefs(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}
	debt, err := s.Debt(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}

	tier := calculator.TierFor(prefs.CreditScore)
	switch {
	case debt.Delinquent:
		return nil, customErrors.WrapUnderwritingRejected("a loan is overdue; repay it before borrowing again")
	case s.cfg.MaxActiveLoans > 0 && debt.OpenLoans >= s.cfg.MaxActiveLoans:
		return nil, customErrors.WrapUnderwritingRejected(fmt.Sprintf("at most %d open loans are allowed", s.cfg.MaxActiveLoans))
	case debt.OutstandingPrincipal.Add(principal).GreaterThan(tier.MaxPrincipal):
		return nil, customErrors.WrapUnderwritingRejected(fmt.Sprintf(
			"requested %s would exceed the %s tier limit of %s",
			money.FormatHuman(principal), tier.Name, money.FormatHuman(tier.MaxPrincipal)))
	}

	offer := tier.OfferFor(principal)
	return s.CreateAndCredit(ctx, tenant, userID, offer.Principal, offer.AprBps, offer.TermDays)
}

func (s *LoanService) GetPrefs(ctx context.Context, tenant, userID string) (*domain.UserLoanPrefs, error) {
	var prefs *domain.UserLoanPrefs
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		prefs, err = repository.NewPrefsRepository(db, s.cfg.DefaultCreditScore).Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return prefs, nil
}

// SetPrefs stores reminder preferences. The credit score is left as is.
func (s *LoanService) SetPrefs(ctx context.Context, tenant string, prefs *domain.UserLoanPrefs) error {
	if prefs.UserID == "" {
		return customErrors.WrapValidation("user id is required")
	}
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return repository.NewPrefsRepository(db, s.cfg.DefaultCreditScore).Upsert(ctx, prefs)
	})
	return wrapStorage(err)
}

func (s *LoanService) SetCreditScore(ctx context.Context, tenant, userID string, score int) error {
	if score < 300 || score > 850 {
		return customErrors.WrapValidation("credit score must be between 300 and 850")
	}
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return repository.NewPrefsRepository(db, s.cfg.DefaultCreditScore).SetCreditScore(ctx, userID, score)
	})
	return wrapStorage(err)
}

// SetReminderChannel sets the tenant channel used when a DM cannot be delivered.
func (s *LoanService) SetReminderChannel(ctx context.Context, tenant, channelID string) error {
	if channelID == "" {
		return customErrors.WrapValidation("channel id is required")
	}
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return repository.NewSettingsRepository(db).Set(ctx, settingReminderChannel, channelID)
	})
	return wrapStorage(err)
}

func (s *LoanService) ReminderChannel(ctx context.Context, tenant string) (string, bool, error) {
	var (
		channel string
		found   bool
	)
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		channel, found, err = repository.NewSettingsRepository(db).Get(ctx, settingReminderChannel)
		return err
	})
	if err != nil {
		return "", false, wrapStorage(err)
	}
	return channel, found, nil
}

// ReminderCandidates returns open loans due before now+lookahead. They are
// not touched; callers pass each through AccrueOnTouch.
func (s *LoanService) ReminderCandidates(ctx context.Context, tenant string, now time.Time, lookahead time.Duration) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		var err error
		loans, err = repository.NewLoanRepository(db).ReminderCandidates(ctx, now.Add(lookahead))
		return err
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return loans, nil
}

// MarkReminded records a delivered reminder.
func (s *LoanService) MarkReminded(ctx context.Context, tenant, loanID string, at time.Time) error {
	err := s.stores.Run(ctx, tenant, func(db *sqlx.DB) error {
		return repository.NewLoanRepository(db).MarkReminded(ctx, loanID, at)
	})
	return wrapStorage(err)
}

func (s *LoanService) loadAndTouch(ctx context.Context, q sqlx.ExtContext, loanID string, now time.Time) (*domain.Loan, error) {
	loan, err := repository.NewLoanRepository(q).GetByID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customErrors.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, err
	}
	return s.touch(ctx, q, loan, now)
}

func (s *LoanService) listAndTouch(ctx context.Context, q sqlx.ExtContext, userID string, now time.Time) ([]*domain.Loan, error) {
	loans, err := repository.NewLoanRepository(q).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, l := range loans {
		if loans[i], err = s.touch(ctx, q, l, now); err != nil {
			return nil, err
		}
	}
	return loans, nil
}
