package movement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyles(t *testing.T) {
	st, ok := StyleOf(-2)
	assert.True(t, ok)
	assert.Equal(t, "#ad0c00", st.Color)
	assert.Equal(t, "Decrease significantly", st.Label)
	_, ok = StyleOf(3)
	assert.False(t, ok)
	assert.Equal(t, []State{2, 1, 0, -1, -2}, States())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, NoChange, Classify(math.NaN(), 0.1))
	assert.Equal(t, IncreaseSignificantly, Classify(0.1, 0.1))
	assert.Equal(t, IncreaseSlightly, Classify(0.05, 0.1))
	assert.Equal(t, DecreaseSignificantly, Classify(-0.1, 0.1))
	assert.Equal(t, DecreaseSlightly, Classify(-0.05, 0.1))
	assert.Equal(t, NoChange, Classify(0, 0.1))
	assert.Equal(t, "gray", NoChange.Color())
}

func TestThreshold(t *testing.T) {
	// changes: +10%, -10%, +10%
	prices := []float64{100, 110, 99, 108.9}
	res := Threshold(prices, 1)
	assert.InDelta(t, 0.11547, res.Threshold, 1e-4)
	assert.Equal(t, []Class{NoChange, IncreaseSlightly, DecreaseSlightly, IncreaseSlightly}, res.Classes)
	assert.Equal(t, 2, res.Counts[IncreaseSlightly])

	res = Threshold(prices, 0.5)
	assert.Equal(t, IncreaseSignificantly, res.Classes[1])
	assert.Equal(t, DecreaseSignificantly, res.Classes[2])
}
