//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/monmiam/internal/config"
)

func TestRedisContainerIdempotency(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewClient(ctx, config.RedisConfig{Addr: endpoint})
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisIdempotency(client, time.Minute)
	key := store.Key("1", "k")

	_, reserved, err := store.Reserve(ctx, key, "h")
	require.NoError(t, err)
	assert.True(t, reserved)

	existing, reserved, err := store.Reserve(ctx, key, "other")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "h", existing.RequestHash)
}
