package candle

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestPeriodBounds(t *testing.T) {
	// 2024-01-07 is a Sunday
	assert.Equal(t, day("2024-01-01"), PeriodStart(day("2024-01-07"), Weekly))
	assert.Equal(t, day("2024-01-08"), PeriodStart(day("2024-01-08"), Weekly))
	assert.Equal(t, day("2024-01-14"), PeriodEnd(day("2024-01-08"), Weekly))
	assert.Equal(t, day("2024-02-29"), PeriodEnd(PeriodStart(day("2024-02-10"), Monthly), Monthly))
	assert.True(t, PeriodEnd(day("2024-02-10"), Daily).IsZero())
}

func TestBuildWeekly(t *testing.T) {
	dates := []time.Time{day("2024-01-05"), day("2024-01-06"), day("2024-01-07"), day("2024-01-08"), day("2024-01-09")}
	prices := []float64{10, 14, 12, 20, math.NaN()}
	got, err := Build(dates, prices, Weekly)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Candle{Period: day("2024-01-01"), PeriodEnd: day("2024-01-07"), Open: 10, High: 14, Low: 10, Close: 12}, got[0])
	assert.Equal(t, 20.0, got[1].Open)
	assert.Equal(t, 20.0, got[1].Close)

	_, err = Build([]time.Time{day("2024-02-01"), day("2024-01-01")}, []float64{1, 2}, Monthly)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	candles := []Candle{{Period: day("2024-01-01"), PeriodEnd: day("2024-01-31"), Open: 1, High: 2.5, Low: 0.5, Close: 2}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, candles, Monthly))
	assert.Equal(t, "PERIOD,OPEN,HIGH,LOW,CLOSE,PERIOD_END\n2024-01-01,1,2.5,0.5,2,2024-01-31\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, candles, Daily))
	assert.Equal(t, "PERIOD,OPEN,HIGH,LOW,CLOSE\n2024-01-01,1,2.5,0.5,2\n", buf.String())
	assert.Equal(t, "btc_candlestick_weekly.csv", FileName(Weekly))

	_, err := ParseSpan("hourly")
	assert.Error(t, err)
}
