// Package correlation computes pairwise correlation matrices over columns
// that may contain missing values.
package correlation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// ParseMethod 解析方法名，空串默认 pearson。
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", Pearson:
		return Pearson, nil
	case Spearman:
		return Spearman, nil
	default:
		return "", fmt.Errorf("unknown correlation method %q", s)
	}
}

// Matrix 是对称相关矩阵，对角线为 1（列全缺失时为 NaN）。
type Matrix struct {
	Method Method      `json:"method"`
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"-"`
}

// At returns the coefficient for the named pair.
func (m Matrix) At(a, b string) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

func (m Matrix) index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Nullable 把 NaN 换成 nil，供 JSON 输出。
func (m Matrix) Nullable() [][]*float64 {
	out := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		out[i] = make([]*float64, len(row))
		for j, v := range row {
			v := v
			if !math.IsNaN(v) {
				out[i][j] = &v
			}
		}
	}
	return out
}

// Compute 计算 columns 两两之间的相关系数，每一对只使用两列都有值的行。
func Compute(labels []string, columns [][]float64, method Method) (Matrix, error) {
	if len(labels) != len(columns) {
		return Matrix{}, fmt.Errorf("correlation: %d labels for %d columns", len(labels), len(columns))
	}
	if method == "" {
		method = Pearson
	}
	n := len(columns)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var r float64
			switch method {
			case Pearson:
				r = PearsonPair(columns[i], columns[j])
			case Spearman:
				r = SpearmanPair(columns[i], columns[j])
			default:
				return Matrix{}, fmt.Errorf("unknown correlation method %q", method)
			}
			vals[i][j], vals[j][i] = r, r
		}
	}
	return Matrix{Method: method, Labels: append([]string(nil), labels...), Values: vals}, nil
}

func complete(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	return xs, ys
}

// PearsonPair 返回线性相关系数；有效对少于 2 或方差为 0 时为 NaN。
func PearsonPair(a, b []float64) float64 {
	xs, ys := complete(a, b)
	return pearson(xs, ys)
}

// SpearmanPair 对有效对取平均秩后计算 Pearson。
func SpearmanPair(a, b []float64) float64 {
	xs, ys := complete(a, b)
	return pearson(rank(xs), rank(ys))
}

func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.StdDev(xs, nil) == 0 || stat.StdDev(ys, nil) == 0 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	return math.Max(-1, math.Min(1, r))
}

// rank 返回 1 起始的平均秩，相同值取平均。
func rank(vals []float64) []float64 {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })
	out := make([]float64, len(vals))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && vals[idx[j+1]] == vals[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
