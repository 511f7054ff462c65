package apihttp_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"onchainvitals/internal/config"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/drawing"
	"onchainvitals/internal/explorer"
	"onchainvitals/internal/palette"
	"onchainvitals/internal/store/gormstore"
	apihttp "onchainvitals/internal/transport/http/api"
	"onchainvitals/internal/warehouse/warehousetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	wh := warehousetest.Client(t)
	reg := warehousetest.Catalog(t)
	store, err := gormstore.NewGormStore(gormstore.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	colors := palette.NewManager(store)
	dash := dashboard.NewService(wh, reg, config.DashboardConfig{DefaultStartDate: "2024-01-01"}, dashboard.WithPalette(colors))
	srv, err := apihttp.NewServer(apihttp.ServerConfig{
		Dashboard: dash,
		Explorer:  explorer.NewService(wh, reg),
		Palette:   colors,
		Drawing:   drawing.NewService(store),
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onchainvitals_http_request_duration_seconds")
}

func TestCatalog(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["features"], "EXCHANGE FLOW:INFLOW_BTC")
}

func TestIndicatorsEndpoint(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/indicators?metric=MVRV&ema=true&ema_span=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "MVRV", body["metric"])
	data := body["data"].(map[string]any)
	assert.Contains(t, data["columns"], "EMA_MVRV")
	assert.Contains(t, data["columns"], dashboard.PriceColumn)

	rec = do(t, h, http.MethodGet, "/api/indicators?metric=SOPR&columns=", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please select at least one indicator column.", decode(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/api/indicators?metric=EMPTY", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No data returned. Check your date range or table selection.", decode(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/api/indicators?metric=SOPR&start=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/indicators?metric=NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/charts/indicators?metric=SOPR&cpd=true&penalty=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestCandlesCSV(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/api/candles?span=weekly&format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "btc_candlestick_weekly.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PERIOD,OPEN,HIGH,LOW,CLOSE,PERIOD_END"))

	rec = do(t, h, http.MethodGet, "/api/candles?span=hourly", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationAndPair(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/api/correlation?features=SOPR:SOPR,MVRV:MVRV&method=spearman", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "spearman", body["method"])

	rec = do(t, h, http.MethodGet, "/charts/correlation?format=png", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/pair?feature=SOPR:SOPR&lag=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode(t, rec)["coefficient"])

	rec = do(t, h, http.MethodGet, "/api/pair?feature=SOPR:SOPR&lag=40", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplorerEndpoints(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/api/explorer/blocks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["blocks"], 10)

	rec = do(t, h, http.MethodGet, "/api/explorer/search?q=99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No block found for block_number = 99", decode(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/api/explorer/blocks/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/explorer/tx/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionColors(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodPut, "/api/sessions/s1/colors", `{"MVRV":"#ABCDEF"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/indicators?metric=MVRV&session=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	colors := decode(t, rec)["colors"].(map[string]any)
	assert.Equal(t, "#abcdef", colors["MVRV"])

	rec = do(t, h, http.MethodGet, "/api/sessions/s1/colors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["palette"], len(palette.Default))

	rec = do(t, h, http.MethodPut, "/api/sessions/s1/colors", `{"MVRV":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrawing(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodPut, "/api/draw/chart1/data", `{"x":[1,2],"y":[3,4]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/draw/chart1", `{"shapes":[{"type":"line","x0":0,"y0":0,"x1":1,"y1":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/draw/chart1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["shapes"], 1)
	assert.Len(t, body["x"], 2)

	rec = do(t, h, http.MethodPut, "/api/draw/chart2/data?feature=SOPR:SOPR", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["x"], warehousetest.Days)

	rec = do(t, h, http.MethodPut, "/api/draw/chart1/data", `{"x":[1],"y":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/draw/chart1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plotly")

	rec = do(t, h, http.MethodGet, "/draw/bad!key", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
