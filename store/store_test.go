package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/stageflow/pipeline"
)

func newRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test", ttl), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedis(t, 0)
	for name, s := range map[string]Store{"memory": NewMemoryStore(), "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "a.b", "x"))
			v, err := s.Get(ctx, "a.b")
			require.NoError(t, err)
			assert.Equal(t, "x", v)

			require.NoError(t, s.Patch(ctx, map[string]any{"a.b": "y", "c": true}))
			v, err = s.Get(ctx, "a.b")
			require.NoError(t, err)
			assert.Equal(t, "y", v)
			v, err = s.Get(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, true, v)
		})
	}
}

func TestRedisStore_KeysAndTTL(t *testing.T) {
	s, mr := newRedis(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "total", []float64{1, 2}))

	raw, err := mr.Get("test:total")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, raw)
	assert.Equal(t, time.Minute, mr.TTL("test:total"))

	v, err := s.Get(ctx, "total")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, v)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "total")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Open(ctx, Options{Kind: "redis", Addr: addr})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(context.Background(), Options{Kind: "redis", Addr: mr.Addr(), Prefix: "p"})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", 1))
	assert.True(t, mr.Exists("p:k"))
	require.NoError(t, s.(*RedisStore).Close())

	_, err = Open(context.Background(), Options{Kind: "etcd"})
	assert.Error(t, err)
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := Commit(ctx, s, "sync", pipeline.Result{})
	require.NoError(t, err)
	assert.Nil(t, v)

	d, err := pipeline.New("numbers", []pipeline.StageSpec{
		{Kind: pipeline.FlowAsync, Handler: pipeline.Delay(time.Millisecond, func(_ context.Context, v any) (any, error) {
			return v.(int) * 2, nil
		})},
	}, pipeline.WithRegistry(nil))
	require.NoError(t, err)
	res, err := d.Flow(ctx, 21)
	require.NoError(t, err)

	v, err = Commit(ctx, s, "async", res)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	got, err := s.Get(ctx, "async")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []string{"async", "sync"}, s.Paths())

	boom := errors.New("boom")
	failing, err := pipeline.New("failing", []pipeline.StageSpec{
		{Kind: pipeline.FlowAsync, Handler: func(any) *pipeline.Future { return pipeline.Rejected(boom) }},
	}, pipeline.WithRegistry(nil))
	require.NoError(t, err)
	res, err = failing.Flow(ctx, 1)
	require.NoError(t, err)
	_, err = Commit(ctx, s, "failed", res)
	assert.ErrorIs(t, err, boom)
	_, err = s.Get(ctx, "failed")
	assert.ErrorIs(t, err, ErrNotFound)
}
