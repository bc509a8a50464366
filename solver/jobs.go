package solver

import (
	"context"
	"time"

	"github.com/wyfcoding/demaxmin/scheduler"
)

// RetentionJobName 是清理过期求解记录的任务名。
const RetentionJobName = "purge-expired-solutions"

// RegisterJobs 在调度器上注册保留期清理任务，未启用持久化或未配置调度时跳过。
func (s *Service) RegisterJobs(sched *scheduler.Scheduler) error {
	cfg := s.Config()
	if s.repo == nil || cfg.RetentionCron == "" || cfg.Retention <= 0 {
		return nil
	}
	return sched.AddJob(scheduler.JobConfig{
		Name:       RetentionJobName,
		Spec:       cfg.RetentionCron,
		Timeout:    time.Minute,
		MaxRetries: 2,
		RetryDelay: 5 * time.Second,
	}, func(ctx context.Context) error {
		_, err := s.PurgeExpired(ctx)
		return err
	})
}
