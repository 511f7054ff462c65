package chart

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HeatmapInput 是相关系数矩阵热力图的输入。Values[i][j] 为 nil 表示无法计算。
type HeatmapInput struct {
	Title  string
	Labels []string
	Values [][]*float64
	Theme  Theme
	Width  int
	Height int
}

// Heatmap 构建 [-1, 1] 的 coolwarm 热力图，格子内显示两位小数。
func Heatmap(in HeatmapInput) *charts.HeatMap {
	theme := in.Theme.orDark()
	hm := charts.NewHeatMap()
	width, height := in.Width, in.Height
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 800
	}
	globals := theme.globals(in.Title, width, height)
	globals = append(globals,
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithGridOpts(opts.Grid{Top: "80px", Left: "180px", Right: "40px", Bottom: "140px"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Data:      in.Labels,
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: theme.Text, Rotate: 45, Interval: "0"},
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "category",
			Data:      in.Labels,
			Inverse:   opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: theme.Text, Interval: "0"},
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        -1,
			Max:        1,
			Orient:     "vertical",
			Right:      "0",
			Top:        "center",
			InRange:    &opts.VisualMapInRange{Color: []string{"#3b4cc0", "#f7f7f7", "#b40426"}},
			TextStyle:  &opts.TextStyle{Color: theme.Text},
		}),
	)
	hm.SetGlobalOptions(globals...)
	hm.SetXAxis(in.Labels)

	data := make([]opts.HeatMapData, 0, len(in.Labels)*len(in.Labels))
	for i, row := range in.Values {
		for j, v := range row {
			var cell any = "-"
			if v != nil {
				cell = round(*v, 2)
			}
			data = append(data, opts.HeatMapData{Value: [3]any{j, i, cell}, Name: fmt.Sprintf("%s / %s", in.Labels[i], in.Labels[j])})
		}
	}
	hm.AddSeries("correlation", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Color: "#000000"}),
	)
	return hm
}
