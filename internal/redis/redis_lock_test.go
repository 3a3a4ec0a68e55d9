package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisDoctorLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisDoctorLocker(client, 5*time.Second, time.Second)
	key := lockKey("d1")

	err := l.WithDoctorLock(context.Background(), "d1", func(ctx context.Context) error {
		require.True(t, mr.Exists(key))
		owner, err := mr.Get(key)
		require.NoError(t, err)
		_, err = uuid.Parse(owner)
		assert.NoError(t, err)
		assert.Equal(t, 5*time.Second, mr.TTL(key))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestRedisDoctorLocker_GivesUpAfterWait(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisDoctorLocker(client, 5*time.Second, 100*time.Millisecond)
	key := lockKey("d1")
	require.NoError(t, mr.Set(key, "other-owner"))

	called := false
	start := time.Now()
	err := l.WithDoctorLock(context.Background(), "d1", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	owner, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-owner", owner)
}

func TestRedisDoctorLocker_RetriesUntilFree(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisDoctorLocker(client, 5*time.Second, 2*time.Second)
	key := lockKey("d1")
	require.NoError(t, mr.Set(key, "other-owner"))

	go func() {
		time.Sleep(60 * time.Millisecond)
		mr.Del(key)
	}()

	called := false
	err := l.WithDoctorLock(context.Background(), "d1", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists(key))
}

func TestRedisDoctorLocker_ReleaseKeepsForeignOwner(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisDoctorLocker(client, 5*time.Second, time.Second)
	key := lockKey("d1")

	// the lock expired mid-call and another writer took it over
	err := l.WithDoctorLock(context.Background(), "d1", func(ctx context.Context) error {
		return mr.Set(key, "next-owner")
	})
	require.NoError(t, err)

	owner, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "next-owner", owner)

	rl := l.(*redisDoctorLocker)
	require.NoError(t, rl.release(context.Background(), key, "not-mine"))
	assert.True(t, mr.Exists(key))

	require.NoError(t, rl.release(context.Background(), key, "next-owner"))
	assert.False(t, mr.Exists(key))
}

func TestRedisDoctorLocker_ContextCancelled(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisDoctorLocker(client, 5*time.Second, 5*time.Second)
	require.NoError(t, mr.Set(lockKey("d1"), "other-owner"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.WithDoctorLock(ctx, "d1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
