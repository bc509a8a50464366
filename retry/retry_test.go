package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(retries int) Config {
	return Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2, MaxRetries: retries}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fast(3), func(attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	down := errors.New("connection refused")
	calls := 0
	_, err := Do(context.Background(), fast(2), func(int) (int, error) {
		calls++
		return 0, down
	})
	require.ErrorIs(t, err, down)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Config{InitialBackoff: time.Hour, MaxRetries: 5}, func(int) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := Config{Multiplier: 10, MaxBackoff: time.Second}
	assert.Equal(t, time.Second, cfg.next(500*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, Config{Multiplier: 2}.next(100*time.Millisecond))
}
