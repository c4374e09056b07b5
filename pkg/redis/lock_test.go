package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	lock, err := newRedisLock(s, "lock:sweep", 0)
	require.NoError(t, err)

	token, ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, defaultLockTTL, s.ttls["lock:sweep"])

	_, ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, token))

	_, ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseIgnoresForeignOwner(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	lock, err := newRedisLock(s, "lock:sweep", time.Minute)
	require.NoError(t, err)

	_, ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "someone-else"))
	assert.Contains(t, s.values, "lock:sweep")

	require.NoError(t, lock.Release(ctx, ""))
	assert.Contains(t, s.values, "lock:sweep")
}

func TestRedisLock_ReleaseMissingKey(t *testing.T) {
	lock, err := newRedisLock(newFakeStore(), "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, lock.Release(context.Background(), "token"))
}

func TestRedisLock_ReleaseReadError(t *testing.T) {
	s := newFakeStore()
	s.getErr = errors.New("boom")
	lock, err := newRedisLock(s, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.Error(t, lock.Release(context.Background(), "token"))
}

func TestNewRedisLock_Validation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)

	_, err = newRedisLock(newFakeStore(), "", time.Minute)
	assert.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock()

	token, ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, token))
	_, ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
