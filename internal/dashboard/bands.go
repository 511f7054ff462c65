package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/analysis/indicator"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/warehouse"
)

type BalanceBandsRequest struct {
	SessionID string
	Bands     []string // 为空时取第一个分档
	Start     time.Time
	End       time.Time
	EMA       bool
	EMASpan   int
}

type BalanceBandsResult struct {
	Bands  []string          `json:"bands"`
	Data   frame.Columnar    `json:"data"`
	Colors map[string]string `json:"colors"`

	frame *frame.Frame
	ema   bool
}

func (r *BalanceBandsResult) Frame() *frame.Frame { return r.frame }

// ListBands 返回仓库中去重后的余额分档。
func (s *Service) ListBands(ctx context.Context) ([]string, error) {
	q, err := warehouse.BandListQuery(s.wh.Dialect(), s.catalog.Snapshot().Doc.BalanceBands)
	if err != nil {
		return nil, err
	}
	bands, err := s.wh.Strings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list balance bands: %w", err)
	}
	return bands, nil
}

// BalanceBands 读取选中分档的地址数，缺失填 0，可选逐列 EMA。
func (s *Service) BalanceBands(ctx context.Context, req BalanceBandsRequest) (*BalanceBandsResult, error) {
	start := s.startOrDefault(req.Start)
	if err := checkRange(start, req.End); err != nil {
		return nil, err
	}
	span, err := s.emaSpan(req.EMASpan)
	if err != nil {
		return nil, err
	}
	var bands []string
	for _, b := range req.Bands {
		if b = strings.TrimSpace(b); b != "" {
			bands = append(bands, b)
		}
	}
	if len(bands) == 0 {
		all, err := s.ListBands(ctx)
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, fmt.Errorf("%w: no balance bands", ErrNoData)
		}
		bands = all[:1]
	}

	q, err := warehouse.BandRowsQuery(s.wh.Dialect(), s.catalog.Snapshot().Doc.BalanceBands, bands, start, req.End)
	if err != nil {
		return nil, err
	}
	rows, err := s.wh.Long(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load balance bands: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: balance bands %s", ErrNoData, strings.Join(bands, ", "))
	}
	f := frame.Pivot(rows, bands, 0)
	cols := f.Columns()
	if req.EMA {
		for _, c := range cols {
			vals, _ := f.Column(c)
			_ = f.Set(emaName(c), indicator.EMA(vals, span))
		}
	}
	colors, err := s.sessionColors(ctx, req.SessionID, cols)
	if err != nil {
		return nil, err
	}
	return &BalanceBandsResult{Bands: cols, Data: f.Columnar(), Colors: colors, frame: f, ema: req.EMA}, nil
}

func (r *BalanceBandsResult) Chart() chart.TimeSeriesInput {
	in := chart.TimeSeriesInput{
		Title:     "Address Balance Bands",
		Dates:     dateStrings(r.frame),
		AxisNames: [2]string{"Address count", ""},
		Theme:     chart.Dark,
	}
	for _, b := range r.Bands {
		vals, _ := r.frame.Column(b)
		in.Series = append(in.Series, chart.Series{Name: b, Values: vals, Color: r.Colors[b], Kind: chart.KindLine})
		if r.ema {
			e, _ := r.frame.Column(emaName(b))
			in.Series = append(in.Series, chart.Series{Name: emaName(b), Values: e, Color: r.Colors[b], Kind: chart.KindLine, Dashed: true})
		}
	}
	return in
}
