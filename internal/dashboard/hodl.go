package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/warehouse"
)

// HodlWavesRequest 选择起始日期和可选的年龄桶（展示名或仓库 key）。
type HodlWavesRequest struct {
	SessionID string
	Start     time.Time
	Buckets   []string
}

type HodlWavesResult struct {
	Buckets []string          `json:"buckets"`
	Data    frame.Columnar    `json:"data"`
	Colors  map[string]string `json:"colors"`

	frame *frame.Frame
}

func (r *HodlWavesResult) Frame() *frame.Frame { return r.frame }

// HodlWaves 把年龄桶长表透视成宽表，列按目录顺序，丢弃今天及以后的日期。
func (s *Service) HodlWaves(ctx context.Context, req HodlWavesRequest) (*HodlWavesResult, error) {
	start := s.startOrDefault(req.Start)
	hw := s.catalog.Snapshot().Doc.HodlWaves
	labels := make(map[string]string, len(hw.Buckets))
	for _, b := range hw.Buckets {
		labels[b.Key] = b.Label
	}
	wanted, err := pickBuckets(hw.Labels(), labels, req.Buckets)
	if err != nil {
		return nil, err
	}

	q, err := warehouse.HodlWavesQuery(s.wh.Dialect(), hw, start)
	if err != nil {
		return nil, err
	}
	rows, err := s.wh.Long(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load hodl waves: %w", err)
	}
	kept := rows[:0]
	for _, r := range rows {
		if l, ok := labels[r.Key]; ok {
			r.Key = l
		}
		if wanted != nil && !wanted[r.Key] {
			continue
		}
		kept = append(kept, r)
	}
	f := frame.Pivot(kept, hw.Labels(), math.NaN()).Before(s.now())
	if f.Empty() {
		return nil, fmt.Errorf("%w: hodl waves", ErrNoData)
	}
	cols := f.Columns()
	colors, err := s.sessionColors(ctx, req.SessionID, cols)
	if err != nil {
		return nil, err
	}
	return &HodlWavesResult{Buckets: cols, Data: f.Columnar(), Colors: colors, frame: f}, nil
}

// pickBuckets 返回选中的展示名集合；未选择时为 nil，表示全部。
func pickBuckets(order []string, byKey map[string]string, picked []string) (map[string]bool, error) {
	var out map[string]bool
	for _, p := range picked {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if l, ok := byKey[p]; ok {
			p = l
		}
		found := false
		for _, l := range order {
			if strings.EqualFold(l, p) {
				p, found = l, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown age bucket %q", ErrInvalidRequest, p)
		}
		if out == nil {
			out = make(map[string]bool)
		}
		out[p] = true
	}
	return out, nil
}

// Chart 是堆叠面积图。
func (r *HodlWavesResult) Chart() chart.TimeSeriesInput {
	in := chart.TimeSeriesInput{
		Title:     "HODL Waves",
		Dates:     dateStrings(r.frame),
		AxisNames: [2]string{"% of supply", ""},
		Theme:     chart.Dark,
	}
	for _, c := range r.Buckets {
		vals, _ := r.frame.Column(c)
		in.Series = append(in.Series, chart.Series{Name: c, Values: vals, Color: r.Colors[c], Kind: chart.KindArea, Stack: "hodl"})
	}
	return in
}
