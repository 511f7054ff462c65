package dashboard

import (
	"context"
	"fmt"
	"time"

	"onchainvitals/internal/logger"
	"onchainvitals/internal/scheduler"
	"onchainvitals/internal/warehouse"
)

// Warm 重新执行默认区间的价格查询与分档列表查询，覆盖缓存。
func (s *Service) Warm(ctx context.Context) error {
	doc := s.catalog.Snapshot().Doc
	start := s.startOrDefault(time.Time{})
	pq, err := warehouse.PriceQuery(s.wh.Dialect(), doc.Price, start, time.Time{})
	if err != nil {
		return err
	}
	res, err := s.wh.Refresh(ctx, pq)
	if err != nil {
		return fmt.Errorf("warm price: %w", err)
	}
	bq, err := warehouse.BandListQuery(s.wh.Dialect(), doc.BalanceBands)
	if err != nil {
		return err
	}
	if _, err := s.wh.Refresh(ctx, bq); err != nil {
		return fmt.Errorf("warm balance bands: %w", err)
	}
	logger.Debugf("cache warmed: %d price rows from %s", len(res.Rows), start.Format(time.DateOnly))
	return nil
}

// RunWarmer 按 interval 周期预热缓存，直到 ctx 取消；interval<=0 时直接返回。
func (s *Service) RunWarmer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	sched := &scheduler.IntervalScheduler{Name: "cache-warmer", Interval: interval, RunImmediately: true}
	sched.Run(ctx, s.Warm)
}
