package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/guild-ledger/internal/config"
	"github.com/segyhp/guild-ledger/internal/money"
)

const keyPrefix = "ledger:balance:"

// BalanceCache keeps the last committed balance per (tenant, user) in Redis.
// The database stays authoritative; entries are overwritten after every
// committed mutation and expire after ttl.
type BalanceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewBalanceCache(client redis.Cmdable, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func balanceKey(tenant, userID string) string {
	return keyPrefix + tenant + ":" + userID
}

// Get returns the cached balance. A miss is reported as found=false, not an error.
func (c *BalanceCache) Get(ctx context.Context, tenant, userID string) (money.Amount, bool, error) {
	raw, err := c.client.Get(ctx, balanceKey(tenant, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return money.Zero, false, nil
	}
	if err != nil {
		return money.Zero, false, err
	}

	amount, err := money.FromStorageString(raw)
	if err != nil {
		return money.Zero, false, fmt.Errorf("cached balance for %s/%s: %w", tenant, userID, err)
	}
	return amount, true, nil
}

func (c *BalanceCache) Set(ctx context.Context, tenant, userID string, amount money.Amount) error {
	return c.client.Set(ctx, balanceKey(tenant, userID), amount.StorageString(), c.ttl).Err()
}

func (c *BalanceCache) Invalidate(ctx context.Context, tenant, userID string) error {
	return c.client.Del(ctx, balanceKey(tenant, userID)).Err()
}

func (c *BalanceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
