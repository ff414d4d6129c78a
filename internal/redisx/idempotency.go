package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PendingValue marks a key whose request is still being processed.
const PendingValue = "pending"

type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func idemKey(key string) string { return fmt.Sprintf(KeyIdemOrderCreate, key) }

// Claim reserves key for the caller. It returns false when the key was already claimed.
func (i *Idempotency) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := i.rdb.SetNX(ctx, idemKey(key), PendingValue, TTLIdempotencyPending).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Lookup returns the stored value: PendingValue, an order id, or "" when the key is unknown.
func (i *Idempotency) Lookup(ctx context.Context, key string) (string, error) {
	v, err := i.rdb.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	if err := i.rdb.Set(ctx, idemKey(key), orderID, TTLIdempotency).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release forgets a claim so the client can retry after a failed request.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	if err := i.rdb.Del(ctx, idemKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
