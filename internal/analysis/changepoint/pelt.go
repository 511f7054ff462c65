// Package changepoint implements penalized exact change point detection (PELT)
// over a one-dimensional signal.
package changepoint

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Model 选择分段代价函数。
type Model string

const (
	ModelRBF Model = "rbf"
	ModelL2  Model = "l2"
)

const (
	defaultMinSize = 2
	defaultJump    = 5
)

// Options 控制 PELT 搜索。零值使用 rbf / min_size=2 / jump=5。
type Options struct {
	Model   Model
	MinSize int
	Jump    int
}

func (o Options) normalized() Options {
	if o.Model == "" {
		o.Model = ModelRBF
	}
	if o.MinSize < defaultMinSize {
		o.MinSize = defaultMinSize
	}
	if o.Jump < 1 {
		o.Jump = defaultJump
	}
	return o
}

type coster interface {
	cost(start, end int) float64
}

// Detect 返回各段的结束下标（不含），最后一个元素总是 len(signal)。
// signal 中不能有 NaN。
func Detect(signal []float64, pen float64, opts Options) ([]int, error) {
	opts = opts.normalized()
	n := len(signal)
	if n == 0 {
		return nil, fmt.Errorf("changepoint: empty signal")
	}
	for _, v := range signal {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("changepoint: signal contains non-finite values")
		}
	}
	if pen < 0 {
		return nil, fmt.Errorf("changepoint: penalty must be >= 0")
	}
	if n < opts.MinSize {
		return []int{n}, nil
	}
	var c coster
	switch opts.Model {
	case ModelRBF:
		c = newRBF(signal)
	case ModelL2:
		c = newL2(signal)
	default:
		return nil, fmt.Errorf("changepoint: unknown model %q", opts.Model)
	}
	return pelt(c, n, pen, opts.MinSize, opts.Jump), nil
}

// pelt 在候选点 {jump 的倍数} 上做带剪枝的动态规划。
func pelt(c coster, n int, pen float64, minSize, jump int) []int {
	total := map[int]float64{0: 0}
	prev := map[int]int{}

	var ends []int
	for k := 0; k < n; k += jump {
		if k >= minSize {
			ends = append(ends, k)
		}
	}
	ends = append(ends, n)

	var admissible []int
	for _, end := range ends {
		adm := ((end - minSize) / jump) * jump
		admissible = append(admissible, adm)

		type candidate struct {
			start int
			value float64
		}
		cands := make([]candidate, 0, len(admissible))
		for _, start := range admissible {
			base, ok := total[start]
			if !ok {
				continue
			}
			cands = append(cands, candidate{start: start, value: base + c.cost(start, end) + pen})
		}
		if len(cands) == 0 {
			continue
		}
		best := cands[0]
		for _, cand := range cands[1:] {
			if cand.value < best.value {
				best = cand
			}
		}
		total[end] = best.value
		prev[end] = best.start

		kept := admissible[:0]
		for _, cand := range cands {
			if cand.value <= best.value+pen {
				kept = append(kept, cand.start)
			}
		}
		admissible = kept
	}

	var bkps []int
	for end := n; end > 0; end = prev[end] {
		bkps = append(bkps, end)
		if _, ok := prev[end]; !ok {
			break
		}
	}
	sort.Ints(bkps)
	return bkps
}

// Dates 把断点映射到对应日期：断点 k（k < len(dates)）对应新段的第一天。
func Dates(bkps []int, dates []time.Time) []time.Time {
	var out []time.Time
	for _, k := range bkps {
		if k > 0 && k < len(dates) {
			out = append(out, dates[k])
		}
	}
	return out
}

// Downsample 按固定步长抽样，使长度不超过 max；返回样本和对应的原始下标。
func Downsample(values []float64, max int) ([]float64, []int) {
	if max <= 0 || len(values) <= max {
		idx := make([]int, len(values))
		for i := range idx {
			idx[i] = i
		}
		return values, idx
	}
	step := (len(values) + max - 1) / max
	var out []float64
	var idx []int
	for i := 0; i < len(values); i += step {
		out = append(out, values[i])
		idx = append(idx, i)
	}
	return out, idx
}
