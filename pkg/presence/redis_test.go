//go:build integration

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mahaj/supportdesk/pkg/model"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisCache_TypingExpires(t *testing.T) {
	rdb := startRedis(t)
	cache := NewRedisCache(rdb, TTL{Online: 3 * time.Second, Typing: time.Second})
	ctx := context.Background()

	require.NoError(t, cache.SetTyping(ctx, 42, model.RoleOperator))

	p, err := cache.Snapshot(ctx, 42, model.RoleOperator)
	require.NoError(t, err)
	assert.True(t, p.Typing)
	assert.True(t, p.Online)

	time.Sleep(1500 * time.Millisecond)
	p, err = cache.Snapshot(ctx, 42, model.RoleOperator)
	require.NoError(t, err)
	assert.False(t, p.Typing)
	assert.True(t, p.Online)

	p, err = cache.Snapshot(ctx, 42, model.RoleRequester)
	require.NoError(t, err)
	assert.False(t, p.Online)
}
