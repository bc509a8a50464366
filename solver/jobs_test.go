package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/scheduler"
)

func TestRetentionJob(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	cfg := solverConfig()
	cfg.RetentionCron = "@daily"
	svc.UpdateConfig(cfg)

	svc.now = func() time.Time { return time.Now().Add(-72 * time.Hour) }
	_, err := svc.SolveOnce(ctx, tiedDemand())
	require.NoError(t, err)
	svc.now = time.Now

	sched := scheduler.NewScheduler(logging.NewLogger("demaxmin", "test"), nil)
	require.NoError(t, svc.RegisterJobs(sched))
	require.NoError(t, sched.Trigger(ctx, RetentionJobName))
	assert.Equal(t, 0, repo.count())
}

func TestRetentionJobSkippedWithoutSchedule(t *testing.T) {
	svc, _, _ := newTestService(t)
	sched := scheduler.NewScheduler(logging.NewLogger("demaxmin", "test"), nil)

	require.NoError(t, svc.RegisterJobs(sched))
	assert.ErrorIs(t, sched.Trigger(context.Background(), RetentionJobName), scheduler.ErrJobNotFound)
}
