// Package indicator 提供序列级别的指标计算。所有函数都把 NaN 视为缺失值，
// 输出长度与输入一致。
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// EMA 计算指数移动平均，alpha = 2/(span+1)，按调整权重（adjust）方式归一。
// 缺失值不参与加权但仍让历史权重衰减；在首个有效值之前输出 NaN。
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1 - alpha
	var num, den float64
	for i, v := range values {
		num *= decay
		den *= decay
		if !math.IsNaN(v) {
			num += v
			den += 1
		}
		if den == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num / den
	}
	return out
}

// SMA 对有效观测值计算简单移动平均（talib），窗口不足处为 NaN。
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 {
		return out
	}
	idx := make([]int, 0, len(values))
	compact := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		idx = append(idx, i)
		compact = append(compact, v)
	}
	if len(compact) < period {
		return out
	}
	var sma []float64
	if period == 1 {
		sma = compact
	} else {
		sma = talib.Sma(compact, period)
	}
	for k := period - 1; k < len(sma); k++ {
		out[idx[k]] = sma[k]
	}
	return out
}

// Diff 返回 v[i]-v[i-1]，首个元素为 NaN。
func Diff(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Shift 把序列向后平移 n 位（n<0 向前），空出的位置为 NaN。
func Shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		j := i - n
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// PctChange 返回相邻变化率；前值为 0 或缺失时为 NaN。
func PctChange(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(values[i]) {
			continue
		}
		out[i] = values[i]/prev - 1
	}
	return out
}

// Std 是忽略 NaN 的样本标准差（ddof=1），有效值少于 2 个时为 NaN。
func Std(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return math.NaN()
	}
	return stat.StdDev(valid, nil)
}

// LastValid 返回最后一个有限值，没有则为 NaN。
func LastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return math.NaN()
}

// RelativeState 描述最新值相对于参考线的位置。
func RelativeState(price, ref float64) string {
	if ref == 0 || math.IsNaN(ref) || math.IsNaN(price) {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
