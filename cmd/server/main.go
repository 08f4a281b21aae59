package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/guild-ledger/internal/cache"
	"github.com/segyhp/guild-ledger/internal/config"
	"github.com/segyhp/guild-ledger/internal/handler"
	"github.com/segyhp/guild-ledger/internal/keylock"
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
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tenant databases open lazily on first use
	stores, err := storage.NewManager(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	locks := keylock.New()
	defer locks.Close()

	// Redis is optional; without it balances are always read from storage
	var (
		balanceCache service.BalanceCache
		cachePinger  handler.Pinger
	)
	if cfg.Redis.Enabled {
		client, err := cache.Open(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, balance cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer client.Close()
			c := cache.NewBalanceCache(client, cfg.Redis.BalanceCacheTTL)
			balanceCache, cachePinger = c, c
		}
	}

	wallet := service.NewWalletService(stores, locks, balanceCache, logger)
	loans := service.NewLoanService(stores, locks, wallet, cfg.Loans, logger)

	router := handler.NewRouter(
		handler.NewLedgerHandler(wallet, cfg.Money.MaxExponent, logger),
		handler.NewLoanHandler(loans, cfg.Money.MaxExponent, logger),
		handler.NewHealthHandler(stores, cachePinger, cfg.Health.Timeout),
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
