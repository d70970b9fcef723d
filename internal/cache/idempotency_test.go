package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisIdempotency, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotency(client, time.Minute), mr
}

func TestReserveCompleteReplay(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := store.Key("7", "cart-1")

	existing, reserved, err := store.Reserve(ctx, key, "hash-a")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Nil(t, existing)

	existing, reserved, err = store.Reserve(ctx, key, "hash-a")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.False(t, existing.Done, "first request still in flight")

	require.NoError(t, store.Complete(ctx, key, Record{
		RequestHash: "hash-a",
		Status:      201,
		Body:        json.RawMessage(`{"id":1}`),
	}))

	existing, reserved, err = store.Reserve(ctx, key, "hash-a")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.True(t, existing.Done)
	assert.Equal(t, 201, existing.Status)
	assert.JSONEq(t, `{"id":1}`, string(existing.Body))
}

func TestReleaseAndExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := store.Key("7", "cart-2")

	_, reserved, err := store.Reserve(ctx, key, "h")
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, store.Release(ctx, key))
	_, reserved, err = store.Reserve(ctx, key, "h")
	require.NoError(t, err)
	assert.True(t, reserved, "released key can be claimed again")

	mr.FastForward(2 * time.Minute)
	_, reserved, err = store.Reserve(ctx, key, "h")
	require.NoError(t, err)
	assert.True(t, reserved, "expired key can be claimed again")
}
