package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/guild-ledger/internal/money"
)

// fakeRedis implements the handful of commands BalanceCache uses over a map.
type fakeRedis struct {
	redis.Cmdable
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestBalanceCache_Miss(t *testing.T) {
	c := NewBalanceCache(newFakeRedis(), time.Minute)

	_, found, err := c.Get(context.Background(), "guild", "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBalanceCache_SetGetInvalidate(t *testing.T) {
	fake := newFakeRedis()
	c := NewBalanceCache(fake, time.Minute)
	ctx := context.Background()

	huge := money.New(7).MulPow10(250)
	require.NoError(t, c.Set(ctx, "guild", "alice", huge))
	assert.Equal(t, time.Minute, fake.ttls["ledger:balance:guild:alice"])

	got, found, err := c.Get(ctx, "guild", "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Equal(huge))

	// Tenants do not share entries.
	_, found, err = c.Get(ctx, "other", "alice")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Invalidate(ctx, "guild", "alice"))
	_, found, err = c.Get(ctx, "guild", "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBalanceCache_Errors(t *testing.T) {
	fake := newFakeRedis()
	fake.failGet = errors.New("connection refused")
	c := NewBalanceCache(fake, time.Minute)

	_, _, err := c.Get(context.Background(), "guild", "alice")
	assert.EqualError(t, err, "connection refused")

	fake.failGet = nil
	fake.data["ledger:balance:guild:bob"] = "not-a-number"
	_, _, err = c.Get(context.Background(), "guild", "bob")
	assert.Error(t, err)
}

func TestBalanceCache_Ping(t *testing.T) {
	assert.NoError(t, NewBalanceCache(newFakeRedis(), time.Minute).Ping(context.Background()))
}
