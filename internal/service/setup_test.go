package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/guild-ledger/internal/config"
	"github.com/segyhp/guild-ledger/internal/keylock"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/internal/storage"
)

const tenant = "guild"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	stores *storage.Manager
	locks  *keylock.Registry
	wallet *WalletService
	loans  *LoanService
	clock  *testClock
}

func testLoanConfig() config.LoanConfig {
	return config.LoanConfig{
		LatePenaltyBpsPerDay: 25,
		LatePenaltyCapBps:    2500,
		MaxActiveLoans:       3,
		DefaultCreditScore:   600,
	}
}

func newTestEnv(t *testing.T, cache BalanceCache) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores, err := storage.NewManager(config.DatabaseConfig{
		Driver:  storage.DriverSQLite,
		DataDir: t.TempDir(),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	locks := keylock.New()

	wallet := NewWalletService(stores, locks, cache, logger)
	wallet.now = clock.Now

	loans := NewLoanService(stores, locks, wallet, testLoanConfig(), logger)
	loans.now = clock.Now

	return &testEnv{stores: stores, locks: locks, wallet: wallet, loans: loans, clock: clock}
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.wallet.AdjustBalance(context.Background(), tenant, userID, money.New(amount), "seed")
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID string) money.Amount {
	t.Helper()
	b, err := e.wallet.GetBalance(context.Background(), tenant, userID)
	require.NoError(t, err)
	return b
}

type mockBalanceCache struct {
	mock.Mock
}

func (m *mockBalanceCache) Get(ctx context.Context, tenant, userID string) (money.Amount, bool, error) {
	args := m.Called(ctx, tenant, userID)
	return args.Get(0).(money.Amount), args.Bool(1), args.Error(2)
}

func (m *mockBalanceCache) Set(ctx context.Context, tenant, userID string, amount money.Amount) error {
	args := m.Called(ctx, tenant, userID, amount)
	return args.Error(0)
}

func (m *mockBalanceCache) Invalidate(ctx context.Context, tenant, userID string) error {
	args := m.Called(ctx, tenant, userID)
	return args.Error(0)
}
