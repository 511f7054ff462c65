package dashboard_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"onchainvitals/internal/analysis/candle"
	"onchainvitals/internal/analysis/correlation"
	"onchainvitals/internal/analysis/movement"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/config"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/palette"
	"onchainvitals/internal/warehouse/warehousetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *dashboard.Service {
	t.Helper()
	return dashboard.NewService(warehousetest.Client(t), warehousetest.Catalog(t), config.DashboardConfig{
		DefaultStartDate: "2024-01-01",
		DefaultEMASpan:   20,
		DefaultPenalty:   10,
		MaxCPDSamples:    500,
	})
}

func TestIndicatorsOuterJoinWithPriceAndEMA(t *testing.T) {
	svc := newService(t)
	res, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{
		Metric: "mvrv",
		Price:  true,
		EMA:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "MVRV", res.Metric)
	assert.Equal(t, []string{"MVRV"}, res.Columns)
	assert.Equal(t, []string{"MVRV", dashboard.PriceColumn, "EMA_MVRV"}, res.Data.Columns)
	assert.Len(t, res.Data.Dates, warehousetest.Days)
	assert.Nil(t, res.Data.Series["MVRV"][0])
	require.NotNil(t, res.Latest["MVRV"])
	assert.InDelta(t, warehousetest.Price(warehousetest.Days-1)/100, *res.Latest["MVRV"], 1e-9)
	assert.Equal(t, palette.Default[0], res.Colors["MVRV"])
	assert.Equal(t, palette.Default[1], res.Colors[dashboard.PriceColumn])
	assert.Contains(t, res.PriceState, "MVRV")

	in := res.Chart()
	require.Len(t, in.Series, 3)
	assert.True(t, in.Series[1].Dashed)
	assert.Equal(t, 1, in.Series[2].Axis)
}

func TestIndicatorsInnerJoinSameAxis(t *testing.T) {
	svc := newService(t)
	res, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{
		Metric:   "MVRV",
		Price:    true,
		SameAxis: true,
		Join:     frame.Inner,
		LeftKind: chart.KindBar,
	})
	require.NoError(t, err)
	assert.Len(t, res.Data.Dates, warehousetest.Days-10)
	in := res.Chart()
	require.Len(t, in.Series, 2)
	assert.Equal(t, 0, in.Series[1].Axis)
	assert.Equal(t, chart.KindBar, in.Series[0].Kind)
}

func TestIndicatorsValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "SOPR", Columns: []string{" "}})
	assert.ErrorIs(t, err, dashboard.ErrNoColumns)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "SOPR", EMA: true, EMASpan: 1})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "SOPR", Penalty: 201})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{
		Metric: "SOPR",
		Start:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "SOPR", Columns: []string{"NOPE"}})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "UNKNOWN"})
	assert.ErrorIs(t, err, dashboard.ErrNotFound)

	_, err = svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "EMPTY"})
	assert.ErrorIs(t, err, dashboard.ErrNoData)
	assert.Equal(t, "No data returned. Check your date range or table selection.", dashboard.Warning(err))
}

func TestIndicatorsNoOverlap(t *testing.T) {
	svc := newService(t)
	_, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{
		Metric: "TX COUNT",
		Price:  true,
		Join:   frame.Inner,
		Start:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dashboard.ErrNoData) || errors.Is(err, dashboard.ErrNoOverlap))
}

func TestIndicatorsDailyAggregate(t *testing.T) {
	svc := newService(t)
	res, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{Metric: "TX COUNT"})
	require.NoError(t, err)
	require.Len(t, res.Data.Dates, 5)
	assert.InDelta(t, 15, *res.Data.Series["TX_COUNT"][0], 1e-9)
}

func TestIndicatorsChangePoints(t *testing.T) {
	svc := newService(t)
	res, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{
		Metric:  "SOPR",
		CPD:     true,
		Penalty: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ChangePoints, "2024-01-21")
	assert.NotContains(t, res.Data.Columns, dashboard.PriceColumn)
	assert.Equal(t, res.ChangePoints, res.Chart().ChangePoints)
}

func TestIndicatorsChangePointsWithoutPriceKeepsMetricRows(t *testing.T) {
	svc := newService(t)
	res, err := svc.Indicators(context.Background(), dashboard.IndicatorsRequest{
		Metric:  "MVRV",
		CPD:     true,
		Penalty: 1,
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Data.Columns, dashboard.PriceColumn)
	require.Len(t, res.Data.Dates, warehousetest.Days-10)
	assert.Equal(t, "2024-01-11", res.Data.Dates[0])
	for _, v := range res.Data.Series["MVRV"] {
		assert.NotNil(t, v)
	}
}

func TestHodlWaves(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.HodlWaves(ctx, dashboard.HodlWavesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LT1D", "D1_1W", "GTE10Y"}, res.Buckets)
	assert.Len(t, res.Data.Dates, 3)
	assert.InDelta(t, 3, *res.Data.Series["GTE10Y"][0], 1e-9)

	res, err = svc.HodlWaves(ctx, dashboard.HodlWavesRequest{Buckets: []string{">=10y"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"GTE10Y"}, res.Buckets)
	assert.Equal(t, chart.KindArea, res.Chart().Series[0].Kind)

	_, err = svc.HodlWaves(ctx, dashboard.HodlWavesRequest{Buckets: []string{"20y"}})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	ind, err := svc.Indicators(ctx, dashboard.IndicatorsRequest{Metric: "hodl waves", EMA: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"LT1D", "D1_1W", "GTE10Y"}, ind.Columns)
	assert.NotContains(t, ind.Data.Columns, "EMA_LT1D")
	assert.Equal(t, "hodl", ind.Chart().Series[0].Stack)
}

func TestHodlWavesDropsFutureDates(t *testing.T) {
	svc := dashboard.NewService(warehousetest.Client(t), warehousetest.Catalog(t),
		config.DashboardConfig{DefaultStartDate: "2024-01-01"},
		dashboard.WithClock(func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }))
	res, err := svc.HodlWaves(context.Background(), dashboard.HodlWavesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, res.Data.Dates)
}

func TestBalanceBands(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	bands, err := svc.ListBands(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0-1", "1-10", "10-100"}, bands)

	res, err := svc.BalanceBands(ctx, dashboard.BalanceBandsRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0-1"}, res.Bands)

	res, err = svc.BalanceBands(ctx, dashboard.BalanceBandsRequest{Bands: []string{"10-100", "0-1"}, EMA: true, EMASpan: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"10-100", "0-1"}, res.Bands)
	assert.Equal(t, []string{"10-100", "0-1", "EMA_10-100", "EMA_0-1"}, res.Data.Columns)
	require.NotNil(t, res.Data.Series["10-100"][1])
	assert.Equal(t, 0.0, *res.Data.Series["10-100"][1])
	assert.Len(t, res.Chart().Series, 4)

	_, err = svc.BalanceBands(ctx, dashboard.BalanceBandsRequest{Bands: []string{"1000+"}})
	assert.ErrorIs(t, err, dashboard.ErrNoData)
}

func TestMovement(t *testing.T) {
	svc := newService(t)
	res, err := svc.Movement(context.Background(), dashboard.MovementRequest{})
	require.NoError(t, err)
	require.Len(t, res.Points, 3)
	assert.Equal(t, "2024-01-08", res.Points[1].Week)
	assert.Equal(t, movement.State(2), res.Points[1].State)
	assert.Equal(t, "#006e07", res.Points[1].Color)
	assert.Equal(t, "Decrease significantly", res.Points[2].Label)

	in := res.Chart()
	assert.Equal(t, chart.KindLine, in.Series[0].Kind)
	assert.Len(t, in.Series, 4)
}

func TestCandlesWeekly(t *testing.T) {
	svc := newService(t)
	res, err := svc.Candles(context.Background(), dashboard.CandlesRequest{Span: candle.Weekly})
	require.NoError(t, err)
	require.Len(t, res.Candles, 6)
	first := res.Candles[0]
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 106.0, first.Close)
	assert.Equal(t, 100.0, first.Low)
	assert.Equal(t, 106.0, first.High)
	assert.Equal(t, "btc_candlestick_weekly.csv", res.FileName())

	var buf bytes.Buffer
	require.NoError(t, res.WriteCSV(&buf))
	assert.Contains(t, buf.String(), "PERIOD,OPEN,HIGH,LOW,CLOSE,PERIOD_END")
	assert.Len(t, res.Chart().Candles, 6)
}

func TestCorrelationDefaults(t *testing.T) {
	svc := newService(t)
	res, err := svc.Correlation(context.Background(), dashboard.CorrelationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"MVRV:MVRV", "SOPR:SOPR", "EXCHANGE FLOW:INFLOW_BTC", "EXCHANGE FLOW:OUTFLOW_BTC"}, res.Features)
	assert.Equal(t, warehousetest.Days, res.Rows)
	assert.InDelta(t, 1, res.Values().At("EXCHANGE FLOW:INFLOW_BTC", "EXCHANGE FLOW:OUTFLOW_BTC"), 1e-9)
	assert.Equal(t, "correlation_heatmap_pearson.png", res.PNGName())
	assert.Equal(t, chart.Light, res.Heatmap(chart.Light).Theme)
}

func TestCorrelationFeaturesWithEMA(t *testing.T) {
	svc := newService(t)
	res, err := svc.Correlation(context.Background(), dashboard.CorrelationRequest{
		Features:    []string{"sopr:sopr", "EXCHANGE FLOW:inflow_btc"},
		Method:      correlation.Spearman,
		EMA:         true,
		EMAFeatures: []string{"SOPR:SOPR"},
		EMASpan:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOPR:SOPR", "EXCHANGE FLOW:INFLOW_BTC"}, res.Features)
	assert.InDelta(t, 1, res.Values().At("SOPR:SOPR", "EXCHANGE FLOW:INFLOW_BTC"), 1e-9)

	_, err = svc.Correlation(context.Background(), dashboard.CorrelationRequest{Features: []string{"SOPR"}})
	assert.ErrorIs(t, err, dashboard.ErrNotFound)

	_, err = svc.Correlation(context.Background(), dashboard.CorrelationRequest{Tables: []string{"EMPTY"}})
	assert.ErrorIs(t, err, dashboard.ErrNoData)
}

func TestPair(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.Pair(ctx, dashboard.PairRequest{Feature: "SOPR:SOPR"})
	require.NoError(t, err)
	assert.Len(t, res.Data.Dates, warehousetest.Days)
	require.NotNil(t, res.Coefficient)
	assert.Greater(t, *res.Coefficient, 0.8)
	assert.Equal(t, []string{dashboard.PriceColumn, "SOPR:SOPR"}, res.Labels)

	res, err = svc.Pair(ctx, dashboard.PairRequest{Feature: "SOPR:SOPR", Lag: 5})
	require.NoError(t, err)
	assert.Len(t, res.Data.Dates, warehousetest.Days-5)

	res, err = svc.Pair(ctx, dashboard.PairRequest{Feature: "SOPR:SOPR", DiffPrice: true, DiffFeature: true})
	require.NoError(t, err)
	assert.Len(t, res.Data.Dates, warehousetest.Days-1)
	assert.Equal(t, 1, res.Chart().Series[1].Axis)

	_, err = svc.Pair(ctx, dashboard.PairRequest{Feature: "SOPR:SOPR", Lag: 31})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Pair(ctx, dashboard.PairRequest{Feature: "TX COUNT:TX_COUNT", Lag: 30})
	assert.ErrorIs(t, err, dashboard.ErrNoOverlap)
}

func TestThreshold(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.Threshold(ctx, dashboard.ThresholdRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Multiplier)
	require.Len(t, res.Points, warehousetest.Days)
	assert.Nil(t, res.Points[0].PctChange)
	assert.Equal(t, movement.NoChange, res.Points[0].Class)
	assert.Equal(t, movement.IncreaseSignificantly, res.Points[20].Class)
	total := 0
	for _, n := range res.Counts {
		total += n
	}
	assert.Equal(t, warehousetest.Days, total)

	_, err = svc.Threshold(ctx, dashboard.ThresholdRequest{Multiplier: 3.5})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRequest)

	_, err = svc.Threshold(ctx, dashboard.ThresholdRequest{Start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, dashboard.ErrNoData)
}

func TestWarm(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.Warm(context.Background()))
}

func TestWarning(t *testing.T) {
	assert.Equal(t, "Please select at least one indicator column.", dashboard.Warning(fmt.Errorf("wrap: %w", dashboard.ErrNoColumns)))
	assert.Equal(t, "No overlapping data. Check your date range or table selection.", dashboard.Warning(dashboard.ErrNoOverlap))
	assert.Equal(t, "boom", dashboard.Warning(errors.New("boom")))
}

func TestFeatureSeries(t *testing.T) {
	svc := newService(t)
	f, err := svc.FeatureSeries(context.Background(), "MVRV:MVRV", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"MVRV:MVRV"}, f.Columns())
	assert.Equal(t, warehousetest.Days-10, f.Len())

	_, err = svc.FeatureSeries(context.Background(), "EMPTY:VAL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, dashboard.ErrNoData)
}
