package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"onchainvitals/internal/analysis/movement"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/pkg/convert"
	"onchainvitals/internal/warehouse"
)

const (
	defaultMultiplier = 1.0
	minMultiplier     = 0.5
	maxMultiplier     = 3.0
)

type MovementRequest struct {
	Start time.Time
	End   time.Time
}

// MovementPoint 是一周的均价与运动状态。
type MovementPoint struct {
	Week     string         `json:"week"`
	AvgPrice float64        `json:"avg_price"`
	State    movement.State `json:"state"`
	Color    string         `json:"color"`
	Label    string         `json:"label"`
}

type MovementResult struct {
	Points []MovementPoint `json:"points"`
}

// Movement 读取周度均价及状态；状态不在 -2..2 的周保留价格但不打标记。
func (s *Service) Movement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	start := s.startOrDefault(req.Start)
	if err := checkRange(start, req.End); err != nil {
		return nil, err
	}
	q, err := warehouse.MovementQuery(s.wh.Dialect(), s.catalog.Snapshot().Doc.Movement, start, req.End)
	if err != nil {
		return nil, err
	}
	res, err := s.wh.Run(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load movement: %w", err)
	}
	out := &MovementResult{Points: make([]MovementPoint, 0, len(res.Rows))}
	for _, row := range res.Rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("movement: expected 3 columns, got %d", len(row))
		}
		week, err := convert.ToTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("movement: %w", err)
		}
		price := convert.FloatOrNaN(row[1])
		if math.IsNaN(price) {
			continue
		}
		st := movement.State(int(convert.ToFloat64(row[2])))
		p := MovementPoint{Week: week.Format(frame.DateLayout), AvgPrice: price, State: st}
		if style, ok := movement.StyleOf(st); ok {
			p.Color, p.Label = style.Color, style.Label
		}
		out.Points = append(out.Points, p)
	}
	if len(out.Points) == 0 {
		return nil, fmt.Errorf("%w: movement", ErrNoData)
	}
	return out, nil
}

// Chart 画周均价折线，并按状态叠加彩色散点。
func (r *MovementResult) Chart() chart.TimeSeriesInput {
	in := chart.TimeSeriesInput{
		Title:     "BTC Weekly Price Movement",
		AxisNames: [2]string{"Average price (USD)", ""},
		Theme:     chart.Dark,
	}
	prices := make([]float64, len(r.Points))
	for i, p := range r.Points {
		in.Dates = append(in.Dates, p.Week)
		prices[i] = p.AvgPrice
	}
	in.Series = append(in.Series, chart.Series{Name: "AVG_PRICE", Values: prices, Color: "#f0f2f6", Kind: chart.KindLine})
	for _, st := range movement.States() {
		style, _ := movement.StyleOf(st)
		vals := make([]float64, len(r.Points))
		hit := false
		for i, p := range r.Points {
			vals[i] = math.NaN()
			if p.State == st && p.Label != "" {
				vals[i], hit = p.AvgPrice, true
			}
		}
		if hit {
			in.Series = append(in.Series, chart.Series{Name: style.Label, Values: vals, Color: style.Color, Kind: chart.KindScatter})
		}
	}
	return in
}

type ThresholdRequest struct {
	Start      time.Time
	End        time.Time
	Multiplier float64
}

// ThresholdPoint 是一天的价格、变化率与分类。
type ThresholdPoint struct {
	Date      string         `json:"date"`
	Price     float64        `json:"price"`
	PctChange *float64       `json:"pct_change"`
	Class     movement.Class `json:"class"`
}

type ThresholdResult struct {
	Multiplier float64                `json:"multiplier"`
	Threshold  float64                `json:"threshold"`
	Counts     map[movement.Class]int `json:"counts"`
	Points     []ThresholdPoint       `json:"points"`
}

// Threshold 对区间内 BTC 日价格的涨跌幅分类，阈值为涨跌幅标准差乘以倍数。
func (s *Service) Threshold(ctx context.Context, req ThresholdRequest) (*ThresholdResult, error) {
	if req.Multiplier == 0 {
		req.Multiplier = defaultMultiplier
	}
	if req.Multiplier < minMultiplier || req.Multiplier > maxMultiplier {
		return nil, fmt.Errorf("%w: multiplier %.2f outside [%.1f, %.1f]", ErrInvalidRequest, req.Multiplier, minMultiplier, maxMultiplier)
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
	f = f.DropNA(frame.Any)
	if f.Len() < 2 {
		return nil, fmt.Errorf("%w: not enough prices between %s and %s", ErrNoData,
			start.Format(frame.DateLayout), dateOrOpen(req.End))
	}
	prices, _ := f.Column(p.ValueCol)
	th := movement.Threshold(prices, req.Multiplier)
	out := &ThresholdResult{
		Multiplier: req.Multiplier,
		Threshold:  th.Threshold,
		Counts:     th.Counts,
		Points:     make([]ThresholdPoint, len(prices)),
	}
	for i, d := range f.Index {
		pt := ThresholdPoint{Date: d.Format(frame.DateLayout), Price: prices[i], Class: th.Classes[i]}
		if v := th.PctChange[i]; !math.IsNaN(v) {
			pt.PctChange = &v
		}
		out.Points[i] = pt
	}
	return out, nil
}

// Chart 画价格折线，并按分类叠加散点。
func (r *ThresholdResult) Chart() chart.TimeSeriesInput {
	in := chart.TimeSeriesInput{
		Title:     fmt.Sprintf("BTC Price Movement Thresholding (x%.2f)", r.Multiplier),
		AxisNames: [2]string{"Price (USD)", ""},
		Theme:     chart.Dark,
	}
	prices := make([]float64, len(r.Points))
	for i, p := range r.Points {
		in.Dates = append(in.Dates, p.Date)
		prices[i] = p.Price
	}
	in.Series = append(in.Series, chart.Series{Name: PriceColumn, Values: prices, Color: "blue", Kind: chart.KindLine})
	for _, c := range movement.Classes() {
		if r.Counts[c] == 0 {
			continue
		}
		vals := make([]float64, len(r.Points))
		for i, p := range r.Points {
			vals[i] = math.NaN()
			if p.Class == c {
				vals[i] = p.Price
			}
		}
		in.Series = append(in.Series, chart.Series{Name: string(c), Values: vals, Color: c.Color(), Kind: chart.KindScatter})
	}
	return in
}

func dateOrOpen(t time.Time) string {
	if t.IsZero() {
		return "now"
	}
	return t.Format(frame.DateLayout)
}
