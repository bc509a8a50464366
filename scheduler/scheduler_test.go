package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/metrics"
)

func TestAddJobValidation(t *testing.T) {
	s := NewScheduler(logging.Default(), nil)
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, s.AddJob(JobConfig{Spec: "@daily"}, noop), ErrJobNameEmpty)
	assert.ErrorIs(t, s.AddJob(JobConfig{Name: "purge", Spec: "@daily"}, nil), ErrJobHandlerNil)
	assert.ErrorIs(t, s.AddJob(JobConfig{Name: "purge", Spec: "every day"}, noop), ErrJobSpecInvalid)

	require.NoError(t, s.AddJob(JobConfig{Name: "purge", Spec: "0 3 * * *"}, noop))
	assert.ErrorIs(t, s.AddJob(JobConfig{Name: "purge", Spec: "@hourly"}, noop), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Trigger(context.Background(), "missing"), ErrJobNotFound)
}

func TestTriggerRetriesUntilSuccess(t *testing.T) {
	s := NewScheduler(logging.Default(), metrics.NewMetrics("test"))

	var calls atomic.Int32
	require.NoError(t, s.AddJob(JobConfig{Name: "purge", Spec: "@daily", MaxRetries: 2, RetryDelay: time.Millisecond}, func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("database busy")
		}
		return nil
	}))

	require.NoError(t, s.Trigger(context.Background(), "purge"))
	assert.EqualValues(t, 3, calls.Load())
}

func TestTriggerAppliesTimeout(t *testing.T) {
	s := NewScheduler(logging.Default(), nil)
	require.NoError(t, s.AddJob(JobConfig{Name: "slow", Spec: "@daily", Timeout: 10 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	assert.ErrorIs(t, s.Trigger(context.Background(), "slow"), context.DeadlineExceeded)
}

func TestRunOnStartAndStop(t *testing.T) {
	s := NewScheduler(logging.Default(), nil)
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob(JobConfig{Name: "warmup", Spec: "@daily", RunOnStart: true}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}))

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
