package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/guild-ledger/internal/money"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
)

func TestGetBalance_DefaultsToZeroWithoutRow(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.True(t, env.balance(t, "alice").IsZero())

	rec, err := env.wallet.Reconcile(context.Background(), tenant, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Entries)
}

func TestAdjustBalance_SerialDeltasSum(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	expected := money.Zero
	for i := 0; i < 200; i++ {
		delta := money.New(rng.Int63n(2_000) - 800)

		got, err := env.wallet.AdjustBalance(ctx, tenant, "alice", delta, "random")
		if expected.Add(delta).IsNegative() {
			require.True(t, errors.Is(err, customErrors.ErrInsufficientBalance), "step %d", i)
			continue
		}
		require.NoError(t, err, "step %d", i)
		expected = expected.Add(delta)
		assert.True(t, got.Equal(expected))
		assert.False(t, got.IsNegative())
	}

	assert.True(t, env.balance(t, "alice").Equal(expected))

	rec, err := env.wallet.Reconcile(ctx, tenant, "alice")
	require.NoError(t, err)
	assert.True(t, rec.Consistent(), "balance %s log %s", rec.Balance, rec.LogTotal)
}

func TestAdjustBalance_InsufficientLeavesBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fund(t, "alice", 100)

	_, err := env.wallet.AdjustBalance(context.Background(), tenant, "alice", money.New(-101), "bet")

	assert.Equal(t, customErrors.ErrCodeInsufficientBalance, customErrors.Code(err))
	assert.True(t, env.balance(t, "alice").Equal(money.New(100)))
}

func TestAdjustBalance_ExactHugeAmounts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	huge := money.New(1).MulPow10(300)
	_, err := env.wallet.AdjustBalance(ctx, tenant, "whale", huge, "jackpot")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	got, err := env.wallet.AdjustBalance(ctx, tenant, "whale", money.New(1), "one more")
	require.NoError(t, err)

	assert.True(t, got.Equal(huge.Add(money.New(1))))

	history, err := env.wallet.History(ctx, tenant, "whale", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[1].Delta.Equal(huge))
}

func TestAdjustBalance_RejectsFractions(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.wallet.AdjustBalance(context.Background(), tenant, "alice", money.NewFromFloat(1.5), "x")
	assert.True(t, errors.Is(err, customErrors.ErrValidation))
}

func TestTransfer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fund(t, "alice", 500)

	result, err := env.wallet.Transfer(context.Background(), tenant, "alice", "bob", money.New(200), "gift")
	require.NoError(t, err)

	assert.True(t, result.FromBalance.Equal(money.New(300)))
	assert.True(t, result.ToBalance.Equal(money.New(200)))

	history, err := env.wallet.History(context.Background(), tenant, "bob", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gift from alice", history[0].Reason)
}

func TestTransfer_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fund(t, "alice", 50)
	ctx := context.Background()

	tests := []struct {
		name   string
		from   string
		to     string
		amount money.Amount
		code   string
	}{
		{"zero", "alice", "bob", money.Zero, customErrors.ErrCodeValidation},
		{"negative", "alice", "bob", money.New(-5), customErrors.ErrCodeValidation},
		{"self", "alice", "alice", money.New(5), customErrors.ErrCodeValidation},
		{"insufficient", "alice", "bob", money.New(51), customErrors.ErrCodeInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.wallet.Transfer(ctx, tenant, tt.from, tt.to, tt.amount, "")
			assert.Equal(t, tt.code, customErrors.Code(err))
		})
	}

	// Failed transfers are all-or-nothing.
	assert.True(t, env.balance(t, "alice").Equal(money.New(50)))
	assert.True(t, env.balance(t, "bob").IsZero())
}

func TestTransfer_OppositeDirectionsConcurrently(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fund(t, "alice", 1_000)
	env.fund(t, "bob", 1_000)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.wallet.Transfer(ctx, tenant, "alice", "bob", money.New(7), "")
			if err != nil {
				assert.Equal(t, customErrors.ErrCodeInsufficientBalance, customErrors.Code(err))
			}
		}()
		go func() {
			defer wg.Done()
			_, err := env.wallet.Transfer(ctx, tenant, "bob", "alice", money.New(7), "")
			if err != nil {
				assert.Equal(t, customErrors.ErrCodeInsufficientBalance, customErrors.Code(err))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, ctx.Err())

	total := env.balance(t, "alice").Add(env.balance(t, "bob"))
	assert.True(t, total.Equal(money.New(2_000)), "total %s", total)
	assert.Equal(t, 0, env.locks.Len())

	for _, user := range []string{"alice", "bob"} {
		rec, err := env.wallet.Reconcile(context.Background(), tenant, user)
		require.NoError(t, err)
		assert.True(t, rec.Consistent())
	}
}

func TestGetBalance_UsesCache(t *testing.T) {
	cache := &mockBalanceCache{}
	env := newTestEnv(t, cache)
	ctx := context.Background()

	cache.On("Set", mock.Anything, tenant, "alice", mock.MatchedBy(func(a money.Amount) bool {
		return a.Equal(money.New(40))
	})).Return(nil).Once()
	_, err := env.wallet.AdjustBalance(ctx, tenant, "alice", money.New(40), "seed")
	require.NoError(t, err)

	cache.On("Get", mock.Anything, tenant, "alice").Return(money.New(40), true, nil).Once()
	got, err := env.wallet.GetBalance(ctx, tenant, "alice")
	require.NoError(t, err)
	assert.True(t, got.Equal(money.New(40)))

	cache.AssertExpectations(t)
}

func TestGetBalance_CacheFailureFallsBackToStore(t *testing.T) {
	cache := &mockBalanceCache{}
	env := newTestEnv(t, cache)
	ctx := context.Background()

	cache.On("Set", mock.Anything, tenant, "alice", mock.Anything).Return(errors.New("redis down"))
	cache.On("Invalidate", mock.Anything, tenant, "alice").Return(errors.New("redis down"))
	cache.On("Get", mock.Anything, tenant, "alice").Return(money.Zero, false, errors.New("redis down"))

	_, err := env.wallet.AdjustBalance(ctx, tenant, "alice", money.New(15), "seed")
	require.NoError(t, err)

	got, err := env.wallet.GetBalance(ctx, tenant, "alice")
	require.NoError(t, err)
	assert.True(t, got.Equal(money.New(15)))
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("2.5m", false, 0)
	require.NoError(t, err)
	assert.True(t, got.Equal(money.New(2_500_000)))

	_, err = ParseAmount("10xyz", false, 0)
	var be *customErrors.BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, customErrors.ErrCodeBadAmount, be.Code)
	assert.NotEmpty(t, be.Suggestions)

	_, err = ParseAmount("-5", false, 0)
	assert.True(t, errors.Is(err, customErrors.ErrBadAmount))

	got, err = ParseAmount("-5k", true, 0)
	require.NoError(t, err)
	assert.True(t, got.Equal(money.New(-5_000)))
}
