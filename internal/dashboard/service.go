// Package dashboard 实现各页面的数据操作：读取仓库、合并、计算指标并产出图表。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/catalog"
	"onchainvitals/internal/config"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/palette"
	"onchainvitals/internal/warehouse"
)

const (
	minEMASpan  = 2
	maxEMASpan  = 200
	minPenalty  = 1
	maxPenalty  = 200
	maxLagDays  = 30
	defaultSMA  = 50
	maxSMA      = 400
	defaultTopN = 3
)

// PriceColumn 是合并后 BTC 价格列的列名，也是会话颜色里的 key。
const PriceColumn = "BTC_PRICE"

// Service 是所有页面操作的入口，并发安全。
type Service struct {
	wh       *warehouse.Client
	catalog  *catalog.Registry
	colors   *palette.Manager
	defaults config.DashboardConfig
	now      func() time.Time
}

type Option func(*Service)

// WithPalette 让结果带上会话颜色。
func WithPalette(m *palette.Manager) Option {
	return func(s *Service) { s.colors = m }
}

// WithClock 替换当前时间，测试用。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(wh *warehouse.Client, reg *catalog.Registry, defaults config.DashboardConfig, options ...Option) *Service {
	if defaults.DefaultEMASpan <= 0 {
		defaults.DefaultEMASpan = 20
	}
	if defaults.DefaultPenalty <= 0 {
		defaults.DefaultPenalty = 10
	}
	if strings.TrimSpace(defaults.DefaultStartDate) == "" {
		defaults.DefaultStartDate = "2015-01-01"
	}
	s := &Service{wh: wh, catalog: reg, defaults: defaults, now: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Catalog 返回当前目录快照。
func (s *Service) Catalog() catalog.Snapshot { return s.catalog.Snapshot() }

// Features 返回全部 "NAME:COL" 引用。
func (s *Service) Features() []string { return s.catalog.Features() }

func (s *Service) startOrDefault(t time.Time) time.Time {
	if !t.IsZero() {
		return frame.Day(t)
	}
	d, err := s.defaults.StartDate()
	if err != nil {
		return time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

func checkRange(start, end time.Time) error {
	if !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidRequest,
			end.Format(frame.DateLayout), start.Format(frame.DateLayout))
	}
	return nil
}

func (s *Service) emaSpan(span int) (int, error) {
	if span == 0 {
		return s.defaults.DefaultEMASpan, nil
	}
	if span < minEMASpan || span > maxEMASpan {
		return 0, fmt.Errorf("%w: ema span %d outside [%d, %d]", ErrInvalidRequest, span, minEMASpan, maxEMASpan)
	}
	return span, nil
}

func (s *Service) penalty(pen int) (int, error) {
	if pen == 0 {
		return s.defaults.DefaultPenalty, nil
	}
	if pen < minPenalty || pen > maxPenalty {
		return 0, fmt.Errorf("%w: penalty %d outside [%d, %d]", ErrInvalidRequest, pen, minPenalty, maxPenalty)
	}
	return pen, nil
}

// metric 把目录查找失败转换成 ErrNotFound。
func (s *Service) metric(name string) (catalog.Metric, error) {
	m, err := s.catalog.Metric(name)
	if errors.Is(err, catalog.ErrUnknown) {
		return catalog.Metric{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return m, err
}

func (s *Service) feature(ref string) (catalog.Metric, string, error) {
	m, col, err := s.catalog.Feature(ref)
	if errors.Is(err, catalog.ErrUnknown) {
		return catalog.Metric{}, "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return m, col, err
}

// sessionColors 给 series 分配颜色；没有配置 palette 时使用默认调色板。
func (s *Service) sessionColors(ctx context.Context, sessionID string, series []string) (map[string]string, error) {
	if s.colors == nil {
		return palette.Assign(palette.Default, nil, series), nil
	}
	return s.colors.Colors(ctx, sessionID, series)
}

func dateStrings(f *frame.Frame) []string {
	out := make([]string, len(f.Index))
	for i, t := range f.Index {
		out[i] = t.Format(frame.DateLayout)
	}
	return out
}

// FeatureSeries 读取单个 "NAME:COL" 特征的非空值，列名为特征引用。
func (s *Service) FeatureSeries(ctx context.Context, ref string, start, end time.Time) (*frame.Frame, error) {
	m, col, err := s.feature(ref)
	if err != nil {
		return nil, err
	}
	start = s.startOrDefault(start)
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	f, err := s.wh.Series(ctx, m, []string{col}, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", m.Name, err)
	}
	if err := f.Rename(col, m.FeatureRef(col)); err != nil {
		return nil, err
	}
	f = f.DropNA(frame.Any)
	if f.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ref)
	}
	return f, nil
}
