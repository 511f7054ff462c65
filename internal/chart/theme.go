// Package chart 用 go-echarts 构建各页面图表，并可通过 headless chrome 导出 PNG。
package chart

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorBackground = "#000000"
	colorText       = "#f0f2f6"
	colorGrid       = "#4f5b66"
	colorChangePt   = "#ff4b4b"

	colorLightBackground = "#ffffff"
	colorLightText       = "#262730"
	colorLightGrid       = "#d0d4da"

	defaultWidthPx  = 1600
	defaultHeightPx = 700
)

// Theme 描述图表的底色与文字色。
type Theme struct {
	Background string
	Text       string
	Grid       string
}

var (
	Dark  = Theme{Background: colorBackground, Text: colorText, Grid: colorGrid}
	Light = Theme{Background: colorLightBackground, Text: colorLightText, Grid: colorLightGrid}
)

// Renderer 是所有 go-echarts 图表共有的渲染接口。
type Renderer interface {
	Render(w io.Writer) error
}

// HTML 把图表渲染成完整的 HTML 页面。
func HTML(c Renderer) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (t Theme) orDark() Theme {
	if t.Background == "" {
		return Dark
	}
	return t
}

func (t Theme) globals(title string, width, height int) []charts.GlobalOpts {
	if width <= 0 {
		width = defaultWidthPx
	}
	if height <= 0 {
		height = defaultHeightPx
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       title,
			Width:           fmt.Sprintf("%dpx", width),
			Height:          fmt.Sprintf("%dpx", height),
			BackgroundColor: t.Background,
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "left", TitleStyle: &opts.TextStyle{Color: t.Text}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px", TextStyle: &opts.TextStyle{Color: t.Text}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithGridOpts(opts.Grid{Top: "80px", Left: "70px", Right: "70px", Bottom: "60px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	}
}

func (t Theme) xAxis(dates []string) opts.XAxis {
	return opts.XAxis{
		Type:      "category",
		Data:      dates,
		AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: t.Text},
		SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
	}
}

func (t Theme) yAxis(name string, log bool, position string) opts.YAxis {
	typ := "value"
	if log {
		typ = "log"
	}
	return opts.YAxis{
		Name:      name,
		Type:      typ,
		Position:  position,
		Scale:     opts.Bool(true),
		AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: t.Text},
		SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: t.Grid, Opacity: opts.Float(0.6)}},
	}
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func value(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return round(v, 6)
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: value(v)}
	}
	return out
}

func barData(values []float64, color string) []opts.BarData {
	out := make([]opts.BarData, len(values))
	for i, v := range values {
		out[i] = opts.BarData{Value: value(v)}
		if color != "" {
			out[i].ItemStyle = &opts.ItemStyle{Color: color}
		}
	}
	return out
}
