package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)

	other, err := l.Acquire(ctx, "b")
	require.NoError(t, err, "keys are independent")
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, 30*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "checkout:u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:checkout:u1"))
	assert.Equal(t, 30*time.Second, mr.TTL("lock:checkout:u1"))

	_, err = l.Acquire(ctx, "checkout:u1")
	assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)

	release()
	assert.False(t, mr.Exists("lock:checkout:u1"))

	again, err := l.Acquire(ctx, "checkout:u1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredHolderDoesNotReleaseNewOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lock:k"), "stale release must not drop the new holder's lock")

	current()
	assert.False(t, mr.Exists("lock:k"))
}

func TestRedisLocker_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLocker(client, time.Second)

	_, err := l.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
