package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/monmiam/internal/config"
)

// Record is what is kept per idempotency key. Done is false while the
// first request is still being served.
type Record struct {
	RequestHash string          `json:"request_hash"`
	Done        bool            `json:"done"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type RedisIdempotency struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{Client: client, TTL: ttl}
}

// NewClient connects to Redis and checks it answers.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisIdempotency) Key(scope, key string) string {
	return "idem:" + scope + ":" + key
}

// Reserve claims key for a request with the given hash. When the key is
// already taken it returns the stored record and reserved == false.
func (c *RedisIdempotency) Reserve(ctx context.Context, key, requestHash string) (*Record, bool, error) {
	placeholder, err := json.Marshal(Record{RequestHash: requestHash})
	if err != nil {
		return nil, false, err
	}

	ok, err := c.Client.SetNX(ctx, key, placeholder, c.TTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return c.Reserve(ctx, key, requestHash)
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency key: %w", err)
	}

	var existing Record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &existing, false, nil
}

func (c *RedisIdempotency) Complete(ctx context.Context, key string, rec Record) error {
	rec.Done = true
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Release forgets key so the client can retry after a server error.
func (c *RedisIdempotency) Release(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}
