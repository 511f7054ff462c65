package frame

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFromSeriesSortsAndKeepsLastDuplicate(t *testing.T) {
	f, err := FromSeries("A",
		[]time.Time{d("2024-01-03"), d("2024-01-01"), d("2024-01-03")},
		[]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d("2024-01-01"), d("2024-01-03")}, f.Index)
	col, _ := f.Column("A")
	assert.Equal(t, []float64{2, 3}, col)
}

func TestMergeOuterAndInner(t *testing.T) {
	a, _ := FromSeries("A", []time.Time{d("2024-01-01"), d("2024-01-02")}, []float64{1, 2})
	b, _ := FromSeries("B", []time.Time{d("2024-01-02"), d("2024-01-03")}, []float64{20, 30})

	outer, err := a.Merge(b, Outer)
	require.NoError(t, err)
	assert.Equal(t, 3, outer.Len())
	colA, _ := outer.Column("A")
	colB, _ := outer.Column("B")
	assert.True(t, math.IsNaN(colA[2]))
	assert.True(t, math.IsNaN(colB[0]))
	assert.Equal(t, 20.0, colB[1])

	inner, err := a.Merge(b, Inner)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d("2024-01-02")}, inner.Index)
	assert.Equal(t, []string{"A", "B"}, inner.Columns())

	_, err = a.Merge(a, Outer)
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestDropNA(t *testing.T) {
	nan := math.NaN()
	f, err := FromColumns(
		[]time.Time{d("2024-01-01"), d("2024-01-02"), d("2024-01-03")},
		map[string][]float64{"A": {1, nan, nan}, "B": {1, 2, nan}},
		[]string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.DropNA(Any).Len())
	assert.Equal(t, 2, f.DropNA(All).Len())
	assert.Equal(t, 0, New(f.Index).DropNA(All).Len())
}

func TestBetweenAndBefore(t *testing.T) {
	f, _ := FromSeries("A", []time.Time{d("2024-01-01"), d("2024-01-02"), d("2024-01-03")}, []float64{1, 2, 3})
	assert.Equal(t, 2, f.Between(d("2024-01-02"), time.Time{}).Len())
	assert.Equal(t, 1, f.Between(d("2024-01-02"), d("2024-01-02")).Len())
	assert.Equal(t, 3, f.Between(time.Time{}, time.Time{}).Len())
	assert.Equal(t, 2, f.Before(d("2024-01-03")).Len())
}

func TestPivotOrderAndFill(t *testing.T) {
	rows := []LongRow{
		{Date: d("2024-01-02"), Key: "Z", Value: 5},
		{Date: d("2024-01-01"), Key: "B", Value: 1},
		{Date: d("2024-01-02"), Key: "A", Value: 2},
		{Date: d("2024-01-02"), Key: "A", Value: 3},
	}
	f := Pivot(rows, []string{"B", "A", "MISSING"}, 0)
	assert.Equal(t, []string{"B", "A", "Z"}, f.Columns())
	a, _ := f.Column("A")
	assert.Equal(t, []float64{0, 3}, a)
	z, _ := f.Column("Z")
	assert.Equal(t, []float64{0, 5}, z)
}

func TestWriteCSVAndRecords(t *testing.T) {
	f, err := FromColumns(
		[]time.Time{d("2024-01-01"), d("2024-01-02")},
		map[string][]float64{"OPEN": {0.1, math.NaN()}, "CLOSE": {100, 101.25}},
		[]string{"OPEN", "CLOSE"})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf, "DATE"))
	assert.Equal(t, "DATE,OPEN,CLOSE\n2024-01-01,0.1,100\n2024-01-02,,101.25\n", buf.String())

	recs := f.Records("DATE")
	require.Len(t, recs, 2)
	assert.Nil(t, recs[1]["OPEN"])
	assert.Equal(t, 101.25, recs[1]["CLOSE"])

	col := f.Columnar()
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, col.Dates)
	assert.Nil(t, col.Series["OPEN"][1])
}

func TestRenameSelectDrop(t *testing.T) {
	f, _ := FromSeries("A", []time.Time{d("2024-01-01")}, []float64{1})
	require.NoError(t, f.Set("B", []float64{2}))
	require.NoError(t, f.Rename("A", "C"))
	assert.Equal(t, []string{"C", "B"}, f.Columns())
	assert.Error(t, f.Rename("C", "B"))
	s, err := f.Select("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, s.Columns())
	f.Drop("C")
	assert.Equal(t, []string{"B"}, f.Columns())
	assert.Error(t, f.Set("X", []float64{1, 2}))
}
