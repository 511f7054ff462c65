package dashboard

import (
	"context"
	"fmt"
	"io"
	"time"

	"onchainvitals/internal/analysis/candle"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"
)

type CandlesRequest struct {
	Span  candle.Span
	Start time.Time
	End   time.Time
}

type CandlesResult struct {
	Span    candle.Span     `json:"span"`
	Candles []candle.Candle `json:"candles"`
}

// Candles 由日价格聚合出日/周/月 K 线。
func (s *Service) Candles(ctx context.Context, req CandlesRequest) (*CandlesResult, error) {
	if req.Span == "" {
		req.Span = candle.Daily
	}
	start := s.startOrDefault(req.Start)
	if err := checkRange(start, req.End); err != nil {
		return nil, err
	}
	p := s.catalog.Snapshot().Doc.Price
	f, err := s.wh.Price(ctx, p, start, req.End)
	if err != nil {
		return nil, fmt.Errorf("load price: %w", err)
	}
	prices, _ := f.Column(p.ValueCol)
	candles, err := candle.Build(f.Index, prices, req.Span)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: price", ErrNoData)
	}
	return &CandlesResult{Span: req.Span, Candles: candles}, nil
}

// FileName 是 CSV 下载名。
func (r *CandlesResult) FileName() string { return candle.FileName(r.Span) }

func (r *CandlesResult) WriteCSV(w io.Writer) error {
	return candle.WriteCSV(w, r.Candles, r.Span)
}

func (r *CandlesResult) Chart() chart.KlineInput {
	in := chart.KlineInput{
		Title: fmt.Sprintf("BTC Candlestick (%s)", r.Span),
		Theme: chart.Dark,
	}
	for _, c := range r.Candles {
		in.Dates = append(in.Dates, c.Period.Format(frame.DateLayout))
		in.Candles = append(in.Candles, chart.OHLC{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close})
	}
	return in
}
