// Package reminder sends loan due-date reminders. A sweep visits every
// tenant, brings each candidate loan up to date and delivers at most one
// reminder per loan per window, direct message first, tenant channel second.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
	"github.com/segyhp/guild-ledger/pkg/utils"
)

const (
	DefaultWindow    = 24 * time.Hour
	DefaultLookahead = 24 * time.Hour
)

// Sender delivers text to a user or channel id.
type Sender interface {
	Send(ctx context.Context, targetID, text string) error
}

// LoanStore is the loan surface the sweep needs.
type LoanStore interface {
	ReminderCandidates(ctx context.Context, tenant string, now time.Time, lookahead time.Duration) ([]*domain.Loan, error)
	AccrueOnTouch(ctx context.Context, tenant string, loan *domain.Loan, now time.Time) (*domain.Loan, error)
	GetPrefs(ctx context.Context, tenant, userID string) (*domain.UserLoanPrefs, error)
	ReminderChannel(ctx context.Context, tenant string) (string, bool, error)
	MarkReminded(ctx context.Context, tenant, loanID string, at time.Time) error
}

// TenantLister enumerates tenant databases.
type TenantLister interface {
	Tenants(ctx context.Context) ([]string, error)
}

type Options struct {
	// Window is the minimum time between two reminders for one loan.
	Window time.Duration
	// Lookahead selects loans due within this duration of now.
	Lookahead time.Duration
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	Tenants int
	Loans   int
	Sent    int
	Skipped int
	Failed  int
}

type Notifier struct {
	tenants TenantLister
	loans   LoanStore
	dm      Sender
	channel Sender
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewNotifier builds a sweeper. dm and channel may be the same Sender.
func NewNotifier(tenants TenantLister, loans LoanStore, dm, channel Sender, opts Options, logger *slog.Logger) *Notifier {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		tenants: tenants,
		loans:   loans,
		dm:      dm,
		channel: channel,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep runs one pass over every tenant. Per-loan and per-tenant failures
// are counted and logged; only listing tenants or cancellation returns an error.
func (n *Notifier) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	tenants, err := n.tenants.Tenants(ctx)
	if err != nil {
		return stats, fmt.Errorf("list tenants: %w", err)
	}

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Tenants++
		if err := n.sweepTenant(ctx, tenant, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			n.logger.Error("reminder sweep failed for tenant", "tenant", tenant, "error", err)
		}
	}

	return stats, nil
}

func (n *Notifier) sweepTenant(ctx context.Context, tenant string, stats *SweepStats) error {
	now := n.now()

	loans, err := n.loans.ReminderCandidates(ctx, tenant, now, n.opts.Lookahead)
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		return nil
	}

	channel, hasChannel, err := n.loans.ReminderChannel(ctx, tenant)
	if err != nil {
		n.logger.Warn("reminder channel unavailable", "tenant", tenant, "error", err)
		hasChannel = false
	}

	prefs := make(map[string]*domain.UserLoanPrefs)
	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Loans++

		sent, err := n.remind(ctx, tenant, loan, now, prefs, channel, hasChannel)
		switch {
		case err != nil:
			stats.Failed++
			n.logger.Error("reminder failed",
				"tenant", tenant, "loan", loan.ID, "user", loan.UserID, "error", err)
		case sent:
			stats.Sent++
		default:
			stats.Skipped++
		}
	}
	return nil
}

func (n *Notifier) remind(
	ctx context.Context,
	tenant string,
	loan *domain.Loan,
	now time.Time,
	prefsByUser map[string]*domain.UserLoanPrefs,
	channel string,
	hasChannel bool,
) (bool, error) {
	loan, err := n.loans.AccrueOnTouch(ctx, tenant, loan, now)
	if err != nil {
		return false, fmt.Errorf("touch: %w", err)
	}
	if loan.Status != domain.LoanStatusActive && loan.Status != domain.LoanStatusLate {
		return false, nil
	}
	if !loan.LastReminderAt.IsZero() && now.Sub(loan.LastReminderAt) < n.opts.Window {
		return false, nil
	}

	prefs, ok := prefsByUser[loan.UserID]
	if !ok {
		prefs, err = n.loans.GetPrefs(ctx, tenant, loan.UserID)
		if err != nil {
			return false, fmt.Errorf("prefs: %w", err)
		}
		prefsByUser[loan.UserID] = prefs
	}
	if !prefs.Remind || prefs.Snoozed(now) {
		return false, nil
	}

	text := Message(loan, now)
	if err := n.deliver(ctx, loan, text, channel, hasChannel); err != nil {
		return false, err
	}

	// Delivered; if this write fails the next sweep may remind again.
	if err := n.loans.MarkReminded(ctx, tenant, loan.ID, now); err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	return true, nil
}

func (n *Notifier) deliver(ctx context.Context, loan *domain.Loan, text, channel string, hasChannel bool) error {
	dmErr := n.dm.Send(ctx, loan.UserID, text)
	if dmErr == nil {
		return nil
	}
	if !hasChannel {
		return customErrors.WrapDeliveryFailure(loan.ID, dmErr)
	}

	n.logger.Debug("direct message failed, using channel", "loan", loan.ID, "user", loan.UserID, "error", dmErr)
	chErr := n.channel.Send(ctx, channel, fmt.Sprintf("Reminder for %s: %s", loan.UserID, text))
	if chErr == nil {
		return nil
	}
	return customErrors.WrapDeliveryFailure(loan.ID, errors.Join(dmErr, chErr))
}

// Message renders the reminder text for loan at now.
func Message(loan *domain.Loan, now time.Time) string {
	owed := money.FormatHuman(loan.Remaining())
	due := loan.DueAt.UTC().Format("2006-01-02 15:04 UTC")

	if loan.Status == domain.LoanStatusLate {
		days := utils.WholeDaysBetween(loan.DueAt, now)
		return fmt.Sprintf("Loan %s is overdue by %d day(s): %s owed, was due %s. Late fees grow daily.",
			shortID(loan.ID), days, owed, due)
	}
	return fmt.Sprintf("Loan %s: %s owed, due %s.", shortID(loan.ID), owed, due)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
