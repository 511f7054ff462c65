package changepoint

import (
	"math"
	"sort"
)

// rbfCost 是核化代价：段内 Gram 对角线之和减去段内元素和 / 段长。
// Gram 矩阵以二维前缀和保存，单次查询 O(1)。
type rbfCost struct {
	n      int
	prefix []float64 // (n+1)*(n+1)
}

func newRBF(signal []float64) *rbfCost {
	n := len(signal)
	dists := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := signal[i] - signal[j]
			dists = append(dists, d*d)
		}
	}
	gamma := 1.0
	if med := median(dists); med != 0 {
		gamma = 1 / med
	}
	gram := func(i, j int) float64 {
		if i == j {
			return 1
		}
		d := signal[i] - signal[j]
		k := d * d * gamma
		if k < 1e-2 {
			k = 1e-2
		} else if k > 1e2 {
			k = 1e2
		}
		return math.Exp(-k)
	}
	w := n + 1
	prefix := make([]float64, w*w)
	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			rowSum += gram(i, j)
			prefix[(i+1)*w+(j+1)] = prefix[i*w+(j+1)] + rowSum
		}
	}
	return &rbfCost{n: n, prefix: prefix}
}

func (c *rbfCost) blockSum(start, end int) float64 {
	w := c.n + 1
	return c.prefix[end*w+end] - c.prefix[start*w+end] - c.prefix[end*w+start] + c.prefix[start*w+start]
}

func (c *rbfCost) cost(start, end int) float64 {
	length := float64(end - start)
	return length - c.blockSum(start, end)/length
}

// l2Cost 是段内离差平方和。
type l2Cost struct {
	sum, sq []float64
}

func newL2(signal []float64) *l2Cost {
	c := &l2Cost{sum: make([]float64, len(signal)+1), sq: make([]float64, len(signal)+1)}
	for i, v := range signal {
		c.sum[i+1] = c.sum[i] + v
		c.sq[i+1] = c.sq[i] + v*v
	}
	return c
}

func (c *l2Cost) cost(start, end int) float64 {
	s := c.sum[end] - c.sum[start]
	return c.sq[end] - c.sq[start] - s*s/float64(end-start)
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
