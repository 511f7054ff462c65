package changepoint

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepSignal() []float64 {
	out := make([]float64, 100)
	for i := 50; i < 100; i++ {
		out[i] = 10
	}
	return out
}

func TestDetectStep(t *testing.T) {
	for _, model := range []Model{ModelRBF, ModelL2} {
		bkps, err := Detect(stepSignal(), 10, Options{Model: model})
		require.NoError(t, err, model)
		assert.Equal(t, []int{50, 100}, bkps, model)
	}
}

func TestDetectFlatSignalHasOnlyEnd(t *testing.T) {
	flat := make([]float64, 37)
	bkps, err := Detect(flat, 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{37}, bkps)
}

func TestDetectRejectsBadInput(t *testing.T) {
	_, err := Detect(nil, 1, Options{})
	assert.Error(t, err)
	_, err = Detect([]float64{1, math.NaN()}, 1, Options{})
	assert.Error(t, err)
	_, err = Detect([]float64{1, 2, 3}, 1, Options{Model: "normal"})
	assert.Error(t, err)

	bkps, err := Detect([]float64{1}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, bkps)
}

func TestRBFCostMatchesDirectSum(t *testing.T) {
	sig := []float64{1, 3, 2, 8, 9, 7, 1}
	c := newRBF(sig)
	// direct computation of the same block sum
	var dists []float64
	for i := range sig {
		for j := i + 1; j < len(sig); j++ {
			d := sig[i] - sig[j]
			dists = append(dists, d*d)
		}
	}
	gamma := 1 / median(dists)
	var sum float64
	for i := 2; i < 5; i++ {
		for j := 2; j < 5; j++ {
			if i == j {
				sum++
				continue
			}
			d := sig[i] - sig[j]
			k := math.Min(math.Max(d*d*gamma, 1e-2), 1e2)
			sum += math.Exp(-k)
		}
	}
	assert.InDelta(t, 3-sum/3, c.cost(2, 5), 1e-9)
}

func TestDatesAndDownsample(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}
	assert.Equal(t, []time.Time{dates[2]}, Dates([]int{2, 3}, dates))

	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = float64(i)
	}
	sampled, idx := Downsample(vals, 4)
	assert.Equal(t, []float64{0, 3, 6, 9}, sampled)
	assert.Equal(t, []int{0, 3, 6, 9}, idx)
	same, _ := Downsample(vals, 0)
	assert.Len(t, same, 10)
}
