package chart

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorBull = "#26a69a"
	colorBear = "#ef5350"
)

// OHLC 是一根 K 线。
type OHLC struct {
	Open, High, Low, Close float64
}

// KlineInput 的 Dates 与 Candles 一一对应。
type KlineInput struct {
	Title   string
	Dates   []string
	Candles []OHLC
	Theme   Theme
	Width   int
	Height  int
}

// Kline 构建蜡烛图。
func Kline(in KlineInput) *charts.Kline {
	theme := in.Theme.orDark()
	k := charts.NewKLine()
	globals := theme.globals(in.Title, in.Width, in.Height)
	globals = append(globals,
		charts.WithXAxisOpts(theme.xAxis(in.Dates)),
		charts.WithYAxisOpts(theme.yAxis("Price (USD)", false, "left")),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	k.SetGlobalOptions(globals...)
	k.SetXAxis(in.Dates)
	data := make([]opts.KlineData, 0, len(in.Candles))
	for _, c := range in.Candles {
		data = append(data, opts.KlineData{Value: [4]float64{round(c.Open, 2), round(c.Close, 2), round(c.Low, 2), round(c.High, 2)}})
	}
	k.AddSeries("BTC", data,
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	return k
}
