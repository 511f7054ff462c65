// Package movement 描述周度价格运动状态，以及日度涨跌幅的阈值分类。
package movement

import (
	"math"
	"sort"

	"onchainvitals/internal/analysis/indicator"
)

// State 是仓库中 PRICE_MOVEMENT_STATE 的取值，-2..2。
type State int

type Style struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

var styles = map[State]Style{
	-2: {Color: "#ad0c00", Label: "Decrease significantly"},
	-1: {Color: "#ff6f00", Label: "Moderate decrease"},
	0:  {Color: "#fffb00", Label: "Unchanged"},
	1:  {Color: "#55ff00", Label: "Moderate increase"},
	2:  {Color: "#006e07", Label: "Increase significantly"},
}

// StyleOf returns the marker style; ok is false outside -2..2.
func StyleOf(s State) (Style, bool) {
	st, ok := styles[s]
	return st, ok
}

// States 从高到低返回全部状态，与图例顺序一致。
func States() []State {
	out := make([]State, 0, len(styles))
	for s := range styles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Class 是涨跌幅阈值分类的结果。
type Class string

const (
	IncreaseSignificantly Class = "Increase Significantly"
	IncreaseSlightly      Class = "Increase Slightly"
	DecreaseSlightly      Class = "Decrease Slightly"
	DecreaseSignificantly Class = "Decrease Significantly"
	NoChange              Class = "No Change"
)

var classColors = map[Class]string{
	IncreaseSignificantly: "green",
	IncreaseSlightly:      "lightgreen",
	DecreaseSlightly:      "orange",
	DecreaseSignificantly: "red",
	NoChange:              "gray",
}

// Color 返回分类对应的标记颜色。
func (c Class) Color() string {
	if col, ok := classColors[c]; ok {
		return col
	}
	return "blue"
}

// Classes 按图例顺序列出所有分类。
func Classes() []Class {
	return []Class{IncreaseSignificantly, IncreaseSlightly, NoChange, DecreaseSlightly, DecreaseSignificantly}
}

// Classify 对单个变化率分类，NaN 归为 NoChange。
func Classify(change, threshold float64) Class {
	switch {
	case math.IsNaN(change):
		return NoChange
	case change >= threshold:
		return IncreaseSignificantly
	case change > 0:
		return IncreaseSlightly
	case change <= -threshold:
		return DecreaseSignificantly
	case change < 0:
		return DecreaseSlightly
	default:
		return NoChange
	}
}

// Thresholding 是价格序列的阈值分类结果。
type Thresholding struct {
	PctChange []float64     `json:"-"`
	Threshold float64       `json:"threshold"`
	Classes   []Class       `json:"classes"`
	Counts    map[Class]int `json:"counts"`
}

// Threshold 计算日度变化率，阈值为变化率样本标准差乘以 multiplier。
func Threshold(prices []float64, multiplier float64) Thresholding {
	pct := indicator.PctChange(prices)
	thr := indicator.Std(pct) * multiplier
	out := Thresholding{
		PctChange: pct,
		Threshold: thr,
		Classes:   make([]Class, len(pct)),
		Counts:    make(map[Class]int),
	}
	for i, v := range pct {
		c := Classify(v, thr)
		out.Classes[i] = c
		out.Counts[c]++
	}
	return out
}
