package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/analysis/correlation"
	"onchainvitals/internal/analysis/indicator"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"

	"golang.org/x/sync/errgroup"
)

// CorrelationRequest 选择若干表与特征。Features 为空时取所选表的全部列；
// Tables 也为空时取目录前三张表。
type CorrelationRequest struct {
	Tables      []string
	Features    []string // "NAME:COL"
	Start       time.Time
	End         time.Time
	Method      correlation.Method
	EMA         bool
	EMAFeatures []string // 为空时对全部所选特征做 EMA
	EMASpan     int
}

type CorrelationResult struct {
	Method   correlation.Method `json:"method"`
	Features []string           `json:"features"`
	Rows     int                `json:"rows"`
	Matrix   [][]*float64       `json:"matrix"`

	matrix correlation.Matrix
}

func (r *CorrelationResult) Values() correlation.Matrix { return r.matrix }

// PNGName 是热力图 PNG 的下载名。
func (r *CorrelationResult) PNGName() string {
	return fmt.Sprintf("correlation_heatmap_%s.png", r.Method)
}

type featureSel struct {
	metric catalog.Metric
	cols   []string
}

// Correlation 按日期外连接所选特征，丢弃全空行，计算相关矩阵。
func (s *Service) Correlation(ctx context.Context, req CorrelationRequest) (*CorrelationResult, error) {
	if req.Method == "" {
		req.Method = correlation.Pearson
	}
	start := s.startOrDefault(req.Start)
	if err := checkRange(start, req.End); err != nil {
		return nil, err
	}
	span, err := s.emaSpan(req.EMASpan)
	if err != nil {
		return nil, err
	}
	sels, refs, err := s.selectFeatures(req.Tables, req.Features)
	if err != nil {
		return nil, err
	}

	frames := make([]*frame.Frame, len(sels))
	g, gctx := errgroup.WithContext(ctx)
	for i, sel := range sels {
		i, sel := i, sel
		g.Go(func() error {
			f, err := s.wh.Series(gctx, sel.metric, sel.cols, start, req.End)
			if err != nil {
				return fmt.Errorf("load %s: %w", sel.metric.Name, err)
			}
			for _, c := range sel.cols {
				if err := f.Rename(c, sel.metric.FeatureRef(c)); err != nil {
					return err
				}
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged, err := frame.MergeAll(frame.Outer, frames...)
	if err != nil {
		return nil, err
	}
	merged = merged.DropNA(frame.All)
	if merged.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, strings.Join(refs, ", "))
	}

	if req.EMA {
		targets := refs
		if len(req.EMAFeatures) > 0 {
			targets = nil
			for _, ref := range req.EMAFeatures {
				m, col, err := s.feature(ref)
				if err != nil {
					return nil, err
				}
				targets = append(targets, m.FeatureRef(col))
			}
		}
		for _, ref := range targets {
			vals, ok := merged.Column(ref)
			if !ok {
				continue
			}
			_ = merged.Set(ref, indicator.EMA(vals, span))
		}
	}

	columns := make([][]float64, len(refs))
	for i, ref := range refs {
		columns[i], _ = merged.Column(ref)
	}
	mat, err := correlation.Compute(refs, columns, req.Method)
	if err != nil {
		return nil, err
	}
	return &CorrelationResult{
		Method:   req.Method,
		Features: refs,
		Rows:     merged.Len(),
		Matrix:   mat.Nullable(),
		matrix:   mat,
	}, nil
}

// selectFeatures 按表分组特征，保持请求顺序。
func (s *Service) selectFeatures(tables, features []string) ([]featureSel, []string, error) {
	var sels []featureSel
	byName := make(map[string]int)
	var refs []string
	seen := make(map[string]bool)
	add := func(m catalog.Metric, col string) {
		ref := m.FeatureRef(col)
		if seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
		idx, ok := byName[m.Name]
		if !ok {
			idx = len(sels)
			byName[m.Name] = idx
			sels = append(sels, featureSel{metric: m})
		}
		sels[idx].cols = append(sels[idx].cols, col)
	}

	if len(features) > 0 {
		for _, ref := range features {
			m, col, err := s.feature(ref)
			if err != nil {
				return nil, nil, err
			}
			add(m, col)
		}
		return sels, refs, nil
	}
	if len(tables) == 0 {
		names := s.catalog.Snapshot().Names()
		if len(names) > defaultTopN {
			names = names[:defaultTopN]
		}
		tables = names
	}
	for _, name := range tables {
		m, err := s.metric(name)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range m.Columns {
			add(m, c)
		}
	}
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("%w: no features selected", ErrInvalidRequest)
	}
	return sels, refs, nil
}

// Heatmap 构建热力图；导出 PNG 时用浅色主题。
func (r *CorrelationResult) Heatmap(theme chart.Theme) chart.HeatmapInput {
	return chart.HeatmapInput{
		Title:  fmt.Sprintf("Correlation Matrix (%s)", r.Method),
		Labels: r.Features,
		Values: r.Matrix,
		Theme:  theme,
	}
}

// PairRequest 比较 BTC 价格与单个特征，可分别做一阶差分，特征可滞后 0..30 天。
type PairRequest struct {
	Feature     string // "NAME:COL"
	Start       time.Time
	End         time.Time
	Method      correlation.Method
	DiffPrice   bool
	DiffFeature bool
	Lag         int
}

type PairResult struct {
	Feature     string             `json:"feature"`
	Method      correlation.Method `json:"method"`
	Coefficient *float64           `json:"coefficient"`
	Matrix      [][]*float64       `json:"matrix"`
	Labels      []string           `json:"labels"`
	Data        frame.Columnar     `json:"data"`

	frame *frame.Frame
}

// Pair 内连接价格与特征；每一侧先在自身的非空行上差分或滞后。
func (s *Service) Pair(ctx context.Context, req PairRequest) (*PairResult, error) {
	if req.Method == "" {
		req.Method = correlation.Pearson
	}
	if req.Lag < 0 || req.Lag > maxLagDays {
		return nil, fmt.Errorf("%w: lag %d outside [0, %d]", ErrInvalidRequest, req.Lag, maxLagDays)
	}
	start := s.startOrDefault(req.Start)
	if err := checkRange(start, req.End); err != nil {
		return nil, err
	}
	m, col, err := s.feature(req.Feature)
	if err != nil {
		return nil, err
	}
	ref := m.FeatureRef(col)
	p := s.catalog.Snapshot().Doc.Price

	var price, feat *frame.Frame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := s.wh.Price(gctx, p, start, req.End)
		if err != nil {
			return fmt.Errorf("load price: %w", err)
		}
		if err := f.Rename(p.ValueCol, PriceColumn); err != nil {
			return err
		}
		price = f
		return nil
	})
	g.Go(func() error {
		f, err := s.wh.Series(gctx, m, []string{col}, start, req.End)
		if err != nil {
			return fmt.Errorf("load %s: %w", m.Name, err)
		}
		if err := f.Rename(col, ref); err != nil {
			return err
		}
		feat = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	price, err = transform(price.DropNA(frame.Any), PriceColumn, req.DiffPrice, 0)
	if err != nil {
		return nil, err
	}
	feat, err = transform(feat.DropNA(frame.Any), ref, req.DiffFeature, req.Lag)
	if err != nil {
		return nil, err
	}
	merged, err := price.Merge(feat, frame.Inner)
	if err != nil {
		return nil, err
	}
	merged = merged.DropNA(frame.Any)
	if merged.Len() < 2 {
		return nil, fmt.Errorf("%w: %d rows after transformations", ErrNoOverlap, merged.Len())
	}
	pv, _ := merged.Column(PriceColumn)
	fv, _ := merged.Column(ref)
	mat, err := correlation.Compute([]string{PriceColumn, ref}, [][]float64{pv, fv}, req.Method)
	if err != nil {
		return nil, err
	}
	res := &PairResult{
		Feature: ref,
		Method:  req.Method,
		Matrix:  mat.Nullable(),
		Labels:  mat.Labels,
		Data:    merged.Columnar(),
		frame:   merged,
	}
	res.Coefficient = res.Matrix[0][1]
	return res, nil
}

func transform(f *frame.Frame, col string, diff bool, lag int) (*frame.Frame, error) {
	vals, ok := f.Column(col)
	if !ok {
		return nil, fmt.Errorf("column %s missing", col)
	}
	if diff {
		vals = indicator.Diff(vals)
	}
	if lag > 0 {
		vals = indicator.Shift(vals, lag)
	}
	if err := f.Set(col, vals); err != nil {
		return nil, err
	}
	return f.DropNA(frame.Any), nil
}

// Chart 画双轴对比图：价格在左，特征在右。
func (r *PairResult) Chart() chart.TimeSeriesInput {
	pv, _ := r.frame.Column(PriceColumn)
	fv, _ := r.frame.Column(r.Feature)
	return chart.TimeSeriesInput{
		Title:     fmt.Sprintf("BTC vs %s", r.Feature),
		Dates:     dateStrings(r.frame),
		AxisNames: [2]string{PriceColumn, r.Feature},
		Theme:     chart.Dark,
		Series: []chart.Series{
			{Name: PriceColumn, Values: pv, Color: "#F7931A", Kind: chart.KindLine},
			{Name: r.Feature, Values: fv, Color: "#1FA2FF", Kind: chart.KindLine, Axis: 1},
		},
	}
}
