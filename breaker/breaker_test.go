package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/metrics"
)

var errBackend = errors.New("backend down")

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker(Settings{
		Name:        "sessions",
		Config:      config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute},
		MinRequests: 3,
	}, StateGauge(metrics.NewMetrics("test")))

	for range 3 {
		require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, called)
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	b := NewBreaker(Settings{
		Name:         "solutions",
		Config:       config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute},
		MinRequests:  1,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errNotFound) },
	}, nil)

	for range 5 {
		_, err := ExecuteTyped(b, func() (int, error) { return 0, errNotFound })
		require.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	v, err := ExecuteTyped(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDisabledBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(Settings{Name: "off"}, nil)
	for range 20 {
		assert.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	var nilBreaker *Breaker
	v, err := ExecuteTyped(nilBreaker, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
