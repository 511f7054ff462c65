package chart

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Kind 是序列的绘制方式。
type Kind string

const (
	KindLine    Kind = "line"
	KindBar     Kind = "bar"
	KindArea    Kind = "area"
	KindScatter Kind = "scatter"
)

// ParseKind 解析 line/bar，其它值回落为 line。
func ParseKind(s string) Kind {
	if Kind(s) == KindBar {
		return KindBar
	}
	return KindLine
}

// Series 是一条与 Dates 对齐的序列，NaN 表示缺失。
type Series struct {
	Name   string
	Values []float64
	Color  string
	Kind   Kind
	Axis   int // 0 左轴，1 右轴
	Dashed bool
	Stack  string
}

// TimeSeriesInput 描述一张按日期对齐的图。
type TimeSeriesInput struct {
	Title        string
	Dates        []string
	Series       []Series
	AxisNames    [2]string
	LogScale     [2]bool
	ChangePoints []string // 变点日期，画成竖直虚线
	Theme        Theme
	Width        int
	Height       int
}

func (in TimeSeriesInput) dualAxis() bool {
	for _, s := range in.Series {
		if s.Axis == 1 {
			return true
		}
	}
	return false
}

// TimeSeries 构建折线/柱状/面积/散点叠加图，支持双 y 轴与变点标记。
func TimeSeries(in TimeSeriesInput) *charts.Line {
	theme := in.Theme.orDark()
	line := charts.NewLine()
	globals := theme.globals(in.Title, in.Width, in.Height)
	globals = append(globals,
		charts.WithXAxisOpts(theme.xAxis(in.Dates)),
		charts.WithYAxisOpts(theme.yAxis(in.AxisNames[0], in.LogScale[0], "left")),
	)
	line.SetGlobalOptions(globals...)
	if in.dualAxis() {
		right := theme.yAxis(in.AxisNames[1], in.LogScale[1], "right")
		right.SplitLine = &opts.SplitLine{Show: opts.Bool(false)}
		line.ExtendYAxis(right)
	}
	line.SetXAxis(in.Dates)

	marked := len(in.ChangePoints) == 0
	var overlays []charts.Overlaper
	for _, s := range in.Series {
		switch s.Kind {
		case KindBar:
			bar := charts.NewBar()
			bar.SetXAxis(in.Dates)
			bar.AddSeries(s.Name, barData(s.Values, s.Color),
				charts.WithBarChartOpts(opts.BarChart{YAxisIndex: s.Axis}),
			)
			overlays = append(overlays, bar)
			continue
		case KindScatter:
			sc := charts.NewScatter()
			sc.SetXAxis(in.Dates)
			sc.AddSeries(s.Name, scatterData(s.Values),
				charts.WithScatterChartOpts(opts.ScatterChart{YAxisIndex: s.Axis, SymbolSize: 8}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
			)
			overlays = append(overlays, sc)
			continue
		}
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{
				YAxisIndex: s.Axis,
				ShowSymbol: opts.Bool(false),
				Stack:      s.Stack,
			}),
			charts.WithLineStyleOpts(lineStyle(s)),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
		}
		if s.Kind == KindArea {
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Color: s.Color, Opacity: opts.Float(0.8)}))
		}
		if !marked {
			seriesOpts = append(seriesOpts, changePointOpts(in.ChangePoints)...)
			marked = true
		}
		line.AddSeries(s.Name, lineData(s.Values), seriesOpts...)
	}
	if len(overlays) > 0 {
		line.Overlap(overlays...)
	}
	return line
}

func lineStyle(s Series) opts.LineStyle {
	ls := opts.LineStyle{Color: s.Color, Width: 2}
	if s.Dashed {
		ls.Type = "dashed"
	}
	if s.Kind == KindArea {
		ls.Width = 0.5
	}
	return ls
}

func changePointOpts(dates []string) []charts.SeriesOpts {
	items := make([]opts.MarkLineNameXAxisItem, 0, len(dates))
	for _, d := range dates {
		items = append(items, opts.MarkLineNameXAxisItem{Name: "change point", XAxis: d})
	}
	return []charts.SeriesOpts{
		charts.WithMarkLineNameXAxisItemOpts(items...),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol:    []string{"none", "none"},
			Label:     &opts.Label{Show: opts.Bool(false)},
			LineStyle: &opts.LineStyle{Color: colorChangePt, Type: "dashed", Width: 1},
		}),
	}
}

func scatterData(values []float64) []opts.ScatterData {
	out := make([]opts.ScatterData, len(values))
	for i, v := range values {
		out[i] = opts.ScatterData{Value: value(v)}
	}
	return out
}
