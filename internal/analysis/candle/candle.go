// Package candle 把日度价格聚合成日/周/月 K 线。
package candle

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Span string

const (
	Daily   Span = "daily"
	Weekly  Span = "weekly"
	Monthly Span = "monthly"
)

// ParseSpan 解析 span，空串默认 daily。
func ParseSpan(s string) (Span, error) {
	switch Span(strings.ToLower(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("unknown candle span %q", s)
	}
}

// Candle 是一个周期的 OHLC。PeriodEnd 只在周/月线上有值。
type Candle struct {
	Period    time.Time `json:"period"`
	PeriodEnd time.Time `json:"period_end"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// PeriodStart 返回日期所在周期的起点（周线从周一开始）。
func PeriodStart(t time.Time, span Span) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch span {
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// PeriodEnd 周线为起点+6 天，月线为当月最后一天，日线为零值。
func PeriodEnd(start time.Time, span Span) time.Time {
	switch span {
	case Weekly:
		return start.AddDate(0, 0, 6)
	case Monthly:
		return start.AddDate(0, 1, -1)
	default:
		return time.Time{}
	}
}

// Build 聚合已按日期升序排列的价格。NaN 价格被忽略。
func Build(dates []time.Time, prices []float64, span Span) ([]Candle, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("candle: %d dates but %d prices", len(dates), len(prices))
	}
	var out []Candle
	for i, t := range dates {
		p := prices[i]
		if math.IsNaN(p) {
			continue
		}
		start := PeriodStart(t, span)
		n := len(out)
		if n > 0 && out[n-1].Period.Equal(start) {
			c := &out[n-1]
			c.High = math.Max(c.High, p)
			c.Low = math.Min(c.Low, p)
			c.Close = p
			continue
		}
		if n > 0 && start.Before(out[n-1].Period) {
			return nil, fmt.Errorf("candle: dates not ascending at %s", t.Format("2006-01-02"))
		}
		out = append(out, Candle{
			Period:    start,
			PeriodEnd: PeriodEnd(start, span),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
		})
	}
	return out, nil
}

// FileName 返回 CSV 下载文件名。
func FileName(span Span) string {
	return fmt.Sprintf("btc_candlestick_%s.csv", span)
}

// WriteCSV 写出 PERIOD,OPEN,HIGH,LOW,CLOSE[,PERIOD_END]。
func WriteCSV(w io.Writer, candles []Candle, span Span) error {
	cw := csv.NewWriter(w)
	header := []string{"PERIOD", "OPEN", "HIGH", "LOW", "CLOSE"}
	withEnd := span == Weekly || span == Monthly
	if withEnd {
		header = append(header, "PERIOD_END")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range candles {
		row := []string{
			c.Period.Format("2006-01-02"),
			decimal.NewFromFloat(c.Open).String(),
			decimal.NewFromFloat(c.High).String(),
			decimal.NewFromFloat(c.Low).String(),
			decimal.NewFromFloat(c.Close).String(),
		}
		if withEnd {
			row = append(row, c.PeriodEnd.Format("2006-01-02"))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
