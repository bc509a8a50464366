package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
)

func TestLocalLimiterIsPerKey(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLimiter(0, 2)

	for range 2 {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "burst exhausted")

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "other clients keep their own bucket")
}

func TestNew(t *testing.T) {
	l, err := New(config.RateLimitConfig{Backend: "local", Rate: 10, Burst: 5}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalLimiter{}, l)

	_, err = New(config.RateLimitConfig{Backend: "redis", Rate: 10}, nil)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Backend: "memcached"}, nil)
	assert.Error(t, err)
}
