package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/logging"
)

type session struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

func newBigCache(t *testing.T) *BigCache {
	t.Helper()
	c, err := NewBigCache(time.Minute, config.BigCacheConfig{Shards: 4, CleanWindow: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBigCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newBigCache(t)

	var got session
	require.ErrorIs(t, c.Get(ctx, "PRB1", &got), ErrCacheMiss)

	want := session{ID: "PRB1", Labels: []string{"Fábrica", "Ciudad"}}
	require.NoError(t, c.Set(ctx, "PRB1", want, 0))
	require.NoError(t, c.Get(ctx, "PRB1", &got))
	assert.Equal(t, want, got)

	ok, err := c.Exists(ctx, "PRB1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, "PRB1", "never-set"))
	ok, err = c.Exists(ctx, "PRB1")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingCache struct {
	Cache
	err error
}

func (f failingCache) Get(context.Context, string, any) error                { return f.err }
func (f failingCache) Set(context.Context, string, any, time.Duration) error { return f.err }
func (f failingCache) Exists(context.Context, string) (bool, error)          { return false, f.err }
func (f failingCache) Delete(context.Context, ...string) error               { return f.err }
func (f failingCache) Close() error                                          { return nil }

func TestMultiLevelBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newBigCache(t), newBigCache(t)
	c := NewMultiLevelCache(l1, l2, logging.Default())

	require.NoError(t, l2.Set(ctx, "PRB2", session{ID: "PRB2"}, 0))

	var got session
	require.NoError(t, c.Get(ctx, "PRB2", &got))
	assert.Equal(t, "PRB2", got.ID)

	ok, err := l1.Exists(ctx, "PRB2")
	require.NoError(t, err)
	assert.True(t, ok, "L2 hit must backfill L1")

	require.NoError(t, c.Delete(ctx, "PRB2"))
	assert.ErrorIs(t, c.Get(ctx, "PRB2", &got), ErrCacheMiss)
}

func TestMultiLevelPropagatesL2Failure(t *testing.T) {
	ctx := context.Background()
	down := errors.New("redis down")
	c := NewMultiLevelCache(newBigCache(t), failingCache{err: down}, logging.Default())

	var got session
	err := c.Get(ctx, "PRB3", &got)
	require.ErrorIs(t, err, down)
	assert.False(t, errors.Is(err, ErrCacheMiss))

	require.ErrorIs(t, c.Set(ctx, "PRB3", session{}, time.Minute), down)
	assert.True(t, IsMiss(ErrCacheMiss))
	assert.False(t, IsMiss(down))
}

func TestMultiLevelDropsL1CopyWhenL2WriteFails(t *testing.T) {
	ctx := context.Background()
	l1 := newBigCache(t)
	c := NewMultiLevelCache(l1, failingCache{err: errors.New("redis down")}, logging.Default(), WithL1TTL(time.Second))

	require.NoError(t, l1.Set(ctx, "PRB4", session{ID: "PRB4"}, 0))
	require.Error(t, c.Set(ctx, "PRB4", session{ID: "PRB4", Labels: []string{"x"}}, time.Minute))

	ok, err := l1.Exists(ctx, "PRB4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Second, c.localTTL(time.Minute))
	assert.Equal(t, 500*time.Millisecond, c.localTTL(500*time.Millisecond))
}
