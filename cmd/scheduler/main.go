package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/guild-ledger/internal/config"
	"github.com/segyhp/guild-ledger/internal/keylock"
	"github.com/segyhp/guild-ledger/internal/notify"
	"github.com/segyhp/guild-ledger/internal/reminder"
	"github.com/segyhp/guild-ledger/internal/service"
	"github.com/segyhp/guild-ledger/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.NewManager(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	locks := keylock.New()
	defer locks.Close()

	// The sweep never reads balances, so no cache is wired here
	wallet := service.NewWalletService(stores, locks, nil, logger)
	loans := service.NewLoanService(stores, locks, wallet, cfg.Loans, logger)

	var sender reminder.Sender
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken, logger)
		if err != nil {
			return err
		}
		sender = tg
	} else {
		logger.Warn("BOT_TOKEN not set, reminders are only logged")
		sender = notify.NewLogSender(logger)
	}

	notifier := reminder.NewNotifier(stores, loans, sender, sender, reminder.Options{
		Window:    cfg.Scheduler.ReminderWindow,
		Lookahead: cfg.Scheduler.ReminderLookahead,
	}, logger)

	scheduler := reminder.NewScheduler(notifier, cfg.Scheduler.ReminderInterval, cfg.Scheduler.ReminderJitter, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	logger.Info("shutting down scheduler")
	scheduler.Stop()
	return nil
}
