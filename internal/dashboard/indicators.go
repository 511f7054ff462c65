package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"onchainvitals/internal/analysis/changepoint"
	"onchainvitals/internal/analysis/indicator"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/logger"

	"golang.org/x/sync/errgroup"
)

// IndicatorsRequest 对应指标页的全部控件。
type IndicatorsRequest struct {
	SessionID string
	Metric    string
	Columns   []string // 为空时取 metric 的全部列
	Start     time.Time
	End       time.Time
	EMA       bool
	EMASpan   int
	SMA       int // 0 表示不叠加
	Price     bool
	SameAxis  bool
	LeftKind  chart.Kind
	RightKind chart.Kind
	LeftLog   bool
	RightLog  bool
	CPD       bool
	Penalty   int
	Join      frame.Join
}

// IndicatorsResult 是合并后的指标表及其派生信息。
type IndicatorsResult struct {
	Metric       string              `json:"metric"`
	Columns      []string            `json:"columns"`
	Data         frame.Columnar      `json:"data"`
	Colors       map[string]string   `json:"colors"`
	ChangePoints []string            `json:"change_points,omitempty"`
	Latest       map[string]*float64 `json:"latest"`
	PriceState   map[string]string   `json:"price_state,omitempty"`

	frame *frame.Frame
	req   IndicatorsRequest
	hodl  bool
}

// Frame 返回合并后的底层表。
func (r *IndicatorsResult) Frame() *frame.Frame { return r.frame }

func (s *Service) normalizeIndicators(req IndicatorsRequest) (IndicatorsRequest, error) {
	var err error
	if strings.TrimSpace(req.Metric) == "" {
		return req, fmt.Errorf("%w: metric is required", ErrInvalidRequest)
	}
	req.Start = s.startOrDefault(req.Start)
	if err = checkRange(req.Start, req.End); err != nil {
		return req, err
	}
	if req.EMASpan, err = s.emaSpan(req.EMASpan); err != nil {
		return req, err
	}
	if req.Penalty, err = s.penalty(req.Penalty); err != nil {
		return req, err
	}
	if req.SMA < 0 || req.SMA > maxSMA {
		return req, fmt.Errorf("%w: sma period %d outside [0, %d]", ErrInvalidRequest, req.SMA, maxSMA)
	}
	if req.LeftKind == "" {
		req.LeftKind = chart.KindLine
	}
	if req.RightKind == "" {
		req.RightKind = chart.KindLine
	}
	return req, nil
}

// Indicators 读取一个 metric 的若干列，可选叠加 BTC 价格、EMA/SMA 与变点。
func (s *Service) Indicators(ctx context.Context, req IndicatorsRequest) (*IndicatorsResult, error) {
	req, err := s.normalizeIndicators(req)
	if err != nil {
		return nil, err
	}
	snap := s.catalog.Snapshot()
	if strings.EqualFold(strings.TrimSpace(req.Metric), snap.Doc.HodlWaves.Name) {
		return s.hodlIndicators(ctx, snap, req)
	}
	m, err := s.metric(req.Metric)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(m, req.Columns)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if strings.EqualFold(c, PriceColumn) && req.Price {
			return nil, fmt.Errorf("%w: column %s collides with the price overlay", ErrInvalidRequest, c)
		}
	}

	var series, price *frame.Frame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := s.wh.Series(gctx, m, cols, req.Start, req.End)
		if err != nil {
			return fmt.Errorf("load %s: %w", m.Name, err)
		}
		series = f
		return nil
	})
	needPrice := req.Price || req.CPD
	if needPrice {
		g.Go(func() error {
			f, err := s.wh.Price(gctx, snap.Doc.Price, req.Start, req.End)
			if err != nil {
				return fmt.Errorf("load price: %w", err)
			}
			if err := f.Rename(snap.Doc.Price.ValueCol, PriceColumn); err != nil {
				return err
			}
			price = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if series.Empty() || series.DropNA(frame.All).Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, m.Name)
	}

	merged := series
	if needPrice {
		if price.Empty() {
			return nil, fmt.Errorf("%w: price", ErrNoData)
		}
		merged, err = series.Merge(price, req.Join)
		if err != nil {
			return nil, err
		}
		merged = merged.DropNA(frame.All)
		if merged.Len() == 0 {
			return nil, ErrNoOverlap
		}
	}

	res := &IndicatorsResult{Metric: m.Name, Columns: cols, req: req}
	var cps []time.Time
	if req.CPD {
		pc, _ := merged.Column(PriceColumn)
		cps = s.changePoints(merged.Index, pc, req.Penalty)
	}
	if !req.Price {
		merged.Drop(PriceColumn)
		// 只有价格的行在去掉价格列后全为空
		merged = merged.DropNA(frame.All)
	}
	for _, c := range cols {
		vals, _ := merged.Column(c)
		if req.EMA {
			_ = merged.Set(emaName(c), indicator.EMA(vals, req.EMASpan))
		}
		if req.SMA > 0 {
			_ = merged.Set(smaName(c, req.SMA), indicator.SMA(vals, req.SMA))
		}
	}

	// 价格颜色取 palette[len(cols) % 10]，与原页面一致
	keys := append(append([]string(nil), cols...), PriceColumn)
	colors, err := s.sessionColors(ctx, req.SessionID, keys)
	if err != nil {
		return nil, err
	}
	res.Colors = colors
	res.frame = merged
	res.Data = merged.Columnar()
	res.Latest = latest(merged)
	for _, d := range cps {
		res.ChangePoints = append(res.ChangePoints, d.Format(frame.DateLayout))
	}
	if req.Price && req.EMA {
		res.PriceState = make(map[string]string, len(cols))
		p, _ := merged.Column(PriceColumn)
		for _, c := range cols {
			e, _ := merged.Column(emaName(c))
			res.PriceState[c] = indicator.RelativeState(indicator.LastValid(p), indicator.LastValid(e))
		}
	}
	return res, nil
}

// hodlIndicators 走 HODL 长表透视，不做 EMA。
func (s *Service) hodlIndicators(ctx context.Context, snap catalog.Snapshot, req IndicatorsRequest) (*IndicatorsResult, error) {
	hw, err := s.HodlWaves(ctx, HodlWavesRequest{SessionID: req.SessionID, Start: req.Start, Buckets: req.Columns})
	if err != nil {
		return nil, err
	}
	f := hw.frame
	if !req.End.IsZero() {
		f = f.Between(time.Time{}, req.End)
	}
	if f.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, snap.Doc.HodlWaves.Name)
	}
	req.EMA = false
	return &IndicatorsResult{
		Metric:  snap.Doc.HodlWaves.Name,
		Columns: f.Columns(),
		Data:    f.Columnar(),
		Colors:  hw.Colors,
		Latest:  latest(f),
		frame:   f,
		req:     req,
		hodl:    true,
	}, nil
}

// changePoints 在非 NaN 的价格上跑 PELT，必要时先降采样。
func (s *Service) changePoints(dates []time.Time, prices []float64, pen int) []time.Time {
	var sig []float64
	var sigDates []time.Time
	for i, v := range prices {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sig = append(sig, v)
		sigDates = append(sigDates, dates[i])
	}
	if len(sig) == 0 {
		return nil
	}
	sample, idx := changepoint.Downsample(sig, s.defaults.MaxCPDSamples)
	bkps, err := changepoint.Detect(sample, float64(pen), changepoint.Options{})
	if err != nil {
		logger.Warnf("change point detection skipped: %v", err)
		return nil
	}
	sampled := make([]time.Time, len(idx))
	for i, k := range idx {
		sampled[i] = sigDates[k]
	}
	return changepoint.Dates(bkps, sampled)
}

// Chart 按请求的轴配置构建图表。
func (r *IndicatorsResult) Chart() chart.TimeSeriesInput {
	req := r.req
	in := chart.TimeSeriesInput{
		Title:     r.Metric,
		Dates:     dateStrings(r.frame),
		AxisNames: [2]string{r.Metric, "BTC Price (USD)"},
		LogScale:  [2]bool{req.LeftLog, req.RightLog},
		Theme:     chart.Dark,
	}
	hodl := r.hodl
	for _, c := range r.Columns {
		vals, _ := r.frame.Column(c)
		kind := req.LeftKind
		if hodl {
			kind = chart.KindArea
		}
		sr := chart.Series{Name: c, Values: vals, Color: r.Colors[c], Kind: kind}
		if hodl {
			sr.Stack = "hodl"
		}
		in.Series = append(in.Series, sr)
		if req.EMA && !hodl {
			e, _ := r.frame.Column(emaName(c))
			in.Series = append(in.Series, chart.Series{Name: emaName(c), Values: e, Color: r.Colors[c], Kind: chart.KindLine, Dashed: true})
		}
		if req.SMA > 0 && !hodl {
			sma, _ := r.frame.Column(smaName(c, req.SMA))
			in.Series = append(in.Series, chart.Series{Name: smaName(c, req.SMA), Values: sma, Color: r.Colors[c], Kind: chart.KindLine, Dashed: true})
		}
	}
	if p, ok := r.frame.Column(PriceColumn); ok && req.Price {
		axis, kind := 1, req.RightKind
		if req.SameAxis {
			axis, kind = 0, req.LeftKind
		}
		in.Series = append(in.Series, chart.Series{Name: PriceColumn, Values: p, Color: r.Colors[PriceColumn], Kind: kind, Axis: axis})
	}
	in.ChangePoints = r.ChangePoints
	return in
}

func resolveColumns(m catalog.Metric, picked []string) ([]string, error) {
	if len(picked) == 0 {
		return append([]string(nil), m.Columns...), nil
	}
	out := make([]string, 0, len(picked))
	seen := make(map[string]bool, len(picked))
	for _, p := range picked {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		canon := m.Column(p)
		if canon == "" {
			return nil, fmt.Errorf("%w: column %q not in %s", ErrInvalidRequest, p, m.Name)
		}
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoColumns
	}
	return out, nil
}

func emaName(col string) string { return "EMA_" + col }

func smaName(col string, period int) string { return fmt.Sprintf("SMA%d_%s", period, col) }

func latest(f *frame.Frame) map[string]*float64 {
	out := make(map[string]*float64, len(f.Columns()))
	for _, c := range f.Columns() {
		vals, _ := f.Column(c)
		v := indicator.LastValid(vals)
		if math.IsNaN(v) {
			out[c] = nil
			continue
		}
		out[c] = &v
	}
	return out
}
