package chart

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeriesDualAxisWithChangePoints(t *testing.T) {
	c := TimeSeries(TimeSeriesInput{
		Title: "MVRV",
		Dates: []string{"2024-01-01", "2024-01-02", "2024-01-03"},
		Series: []Series{
			{Name: "MVRV", Values: []float64{1, math.NaN(), 3}, Color: "#1f77b4"},
			{Name: "MVRV EMA", Values: []float64{1, 1.5, 2}, Color: "#1f77b4", Dashed: true},
			{Name: "BTC PRICE", Values: []float64{100, 110, 120}, Color: "#ff7f0e", Axis: 1, Kind: KindBar},
		},
		LogScale:     [2]bool{false, true},
		ChangePoints: []string{"2024-01-02"},
	})
	html, err := HTML(c)
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, `"dashed"`)
	assert.Contains(t, out, `"log"`)
	assert.Contains(t, out, `"xAxis":"2024-01-02"`)
	assert.Contains(t, out, "#000000")
	assert.Contains(t, out, `"bar"`)
}

func TestHeatmapLightTheme(t *testing.T) {
	one, half := 1.0, 0.5
	c := Heatmap(HeatmapInput{
		Title:  "pearson",
		Labels: []string{"A", "B"},
		Values: [][]*float64{{&one, &half}, {&half, nil}},
		Theme:  Light,
	})
	html, err := HTML(c)
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "#ffffff")
	assert.Contains(t, out, `"heatmap"`)
	assert.Contains(t, out, `"-"`)
}

func TestKline(t *testing.T) {
	c := Kline(KlineInput{Title: "daily", Dates: []string{"2024-01-01"}, Candles: []OHLC{{Open: 1, High: 3, Low: 0.5, Close: 2}}})
	html, err := HTML(c)
	require.NoError(t, err)
	assert.Contains(t, string(html), "[1,2,0.5,3]")
}

func TestSnapshotterPNG(t *testing.T) {
	s := NewSnapshotter(400, 300, 10*time.Second, true)
	if err := s.Available(context.Background()); err != nil {
		t.Skipf("chrome not available: %v", err)
	}
	png, err := s.PNG(context.Background(), []byte("<html><body>ok</body></html>"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestSnapshotterRetriesAfterFailedProbe(t *testing.T) {
	s := NewSnapshotter(400, 300, time.Second, true)
	calls := 0
	s.probe = func(ctx context.Context) error {
		calls++
		require.NoError(t, ctx.Err())
		if calls == 1 {
			return errors.New("chrome busy")
		}
		return nil
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Available(canceled))
	assert.NoError(t, s.Available(canceled))
	assert.NoError(t, s.Available(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindBar, ParseKind("bar"))
	assert.Equal(t, KindLine, ParseKind("area"))
	assert.Equal(t, KindLine, ParseKind(""))
}
