package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotencyKey(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	key := uuid.New().String()

	_, found, err := client.GetIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetIdempotencyKey(ctx, key, "42", time.Minute))

	orderID, found, err := client.GetIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", orderID)
}

func TestLocker_ExcludesSecondHolder(t *testing.T) {
	client := setupClient(t)
	locker := NewLocker(client, 5*time.Second)
	key := "test-" + uuid.New().String()

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock, err = locker.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()
}

func TestReleaseLock_IgnoresForeignToken(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	token, ok, err := client.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, key, "someone-else"))
	_, ok, err = client.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, key, token))
}

func TestCartStorage(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	storage := NewCartStorage(client, time.Minute)
	key := "cart:" + uuid.New().String()

	data, err := storage.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, storage.Save(ctx, key, []byte(`[]`)))
	data, err = storage.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	ttl, err := client.GetClient().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
