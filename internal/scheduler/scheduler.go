package scheduler

import (
	"context"
	"time"

	"onchainvitals/internal/logger"
)

// IntervalScheduler 按固定间隔执行任务，直到 ctx 取消。
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
}

// Run 阻塞执行。task 返回的错误只记录日志，不会中断循环。
func (s *IntervalScheduler) Run(ctx context.Context, task func(context.Context) error) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler %s: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	logger.Infof("scheduler %s: started interval=%s run_immediately=%v", s.Name, s.Interval, s.RunImmediately)
	if s.RunImmediately {
		s.runOnce(ctx, task)
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("scheduler %s: ctx done, exit", s.Name)
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

func (s *IntervalScheduler) runOnce(ctx context.Context, task func(context.Context) error) {
	start := time.Now()
	if err := task(ctx); err != nil {
		logger.Warnf("scheduler %s: task failed after %s: %v", s.Name, time.Since(start).Truncate(time.Millisecond), err)
		return
	}
	logger.Debugf("scheduler %s: task done in %s", s.Name, time.Since(start).Truncate(time.Millisecond))
}
