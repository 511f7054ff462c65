package correlation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestPearsonPairwiseComplete(t *testing.T) {
	a := []float64{1, 2, 3, nan, 5}
	b := []float64{2, 4, 6, 8, nan}
	assert.InDelta(t, 1.0, PearsonPair(a, b), 1e-12)
	assert.InDelta(t, -1.0, PearsonPair([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.True(t, math.IsNaN(PearsonPair([]float64{1, nan}, []float64{1, 2})))
	assert.True(t, math.IsNaN(PearsonPair([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.InDelta(t, 0.8, PearsonPair([]float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 5}), 1e-12)
}

func TestSpearmanUsesAverageRanks(t *testing.T) {
	assert.Equal(t, []float64{1.5, 1.5, 3}, rank([]float64{7, 7, 9}))
	// monotone but non-linear
	assert.InDelta(t, 1.0, SpearmanPair([]float64{1, 2, 3, 4}, []float64{1, 4, 9, 100}), 1e-12)
}

func TestComputeMatrix(t *testing.T) {
	m, err := Compute([]string{"A", "B", "C"}, [][]float64{
		{1, 2, 3, 4},
		{2, 4, 6, 8},
		{nan, nan, nan, nan},
	}, Pearson)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.At("A", "B"), 1e-12)
	assert.InDelta(t, 1.0, m.At("B", "A"), 1e-12)
	assert.True(t, math.IsNaN(m.At("A", "C")))
	assert.True(t, math.IsNaN(m.At("A", "Z")))
	assert.Nil(t, m.Nullable()[0][2])
	assert.NotNil(t, m.Nullable()[0][1])

	_, err = Compute([]string{"A"}, nil, Pearson)
	assert.Error(t, err)

	meth, err := ParseMethod("Spearman")
	require.NoError(t, err)
	assert.Equal(t, Spearman, meth)
	_, err = ParseMethod("kendall")
	assert.Error(t, err)
}
