package apihttp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"onchainvitals/internal/analysis/candle"
	"onchainvitals/internal/analysis/correlation"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/drawing"
	"onchainvitals/internal/explorer"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/palette"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	dash     *dashboard.Service
	explorer *explorer.Service
	colors   *palette.Manager
	draw     *drawing.Service
	snap     *chart.Snapshotter
}

func (h *handlers) register(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/catalog", h.handleCatalog)
	api.GET("/indicators", h.handleIndicators)
	api.GET("/hodl-waves", h.handleHodlWaves)
	api.GET("/balance-bands", h.handleBalanceBands)
	api.GET("/balance-bands/list", h.handleBandList)
	api.GET("/movement", h.handleMovement)
	api.GET("/candles", h.handleCandles)
	api.GET("/correlation", h.handleCorrelation)
	api.GET("/pair", h.handlePair)
	api.GET("/threshold", h.handleThreshold)

	api.GET("/explorer/blocks", h.handleLatestBlocks)
	api.GET("/explorer/blocks/:number", h.handleBlock)
	api.GET("/explorer/tx/:id", h.handleTransaction)
	api.GET("/explorer/search", h.handleSearch)

	api.GET("/sessions/:id/colors", h.handleGetColors)
	api.PUT("/sessions/:id/colors", h.handlePutColors)

	api.GET("/draw/:key", h.handleGetDrawing)
	api.POST("/draw/:key", h.handleRelayout)
	api.PUT("/draw/:key/data", h.handleSetDrawingData)
	r.GET("/draw/:key", h.handleDrawPage)

	charts := r.Group("/charts")
	charts.GET("/indicators", h.chartIndicators)
	charts.GET("/hodl-waves", h.chartHodlWaves)
	charts.GET("/balance-bands", h.chartBalanceBands)
	charts.GET("/movement", h.chartMovement)
	charts.GET("/candles", h.chartCandles)
	charts.GET("/correlation", h.chartCorrelation)
	charts.GET("/pair", h.chartPair)
	charts.GET("/threshold", h.chartThreshold)
}

func (h *handlers) handleCatalog(c *gin.Context) {
	snap := h.dash.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"metrics":   snap.Doc.Metrics,
		"features":  h.dash.Features(),
		"hodl_waves": gin.H{
			"name":    snap.Doc.HodlWaves.Name,
			"buckets": snap.Doc.HodlWaves.Labels(),
		},
		"price": snap.Doc.Price.Name,
	})
}

func indicatorsRequest(c *gin.Context) (dashboard.IndicatorsRequest, error) {
	p := newParams(c)
	cols, present := p.list("columns")
	if present && len(cols) == 0 {
		return dashboard.IndicatorsRequest{}, dashboard.ErrNoColumns
	}
	join, err := frame.ParseJoin(p.str("join"))
	if err != nil {
		p.fail("join", p.str("join"), err)
	}
	req := dashboard.IndicatorsRequest{
		SessionID: p.session(),
		Metric:    p.str("metric"),
		Columns:   cols,
		Start:     p.date("start"),
		End:       p.date("end"),
		EMA:       p.boolean("ema", false),
		EMASpan:   p.integer("ema_span"),
		SMA:       p.integer("sma"),
		Price:     p.boolean("price", true),
		SameAxis:  p.boolean("same_axis", false),
		LeftKind:  chart.ParseKind(p.str("left_kind")),
		RightKind: chart.ParseKind(p.str("right_kind")),
		LeftLog:   p.boolean("left_log", false),
		RightLog:  p.boolean("right_log", false),
		CPD:       p.boolean("cpd", false),
		Penalty:   p.integer("penalty"),
		Join:      join,
	}
	return req, p.err
}

func (h *handlers) indicators(c *gin.Context) (*dashboard.IndicatorsResult, bool) {
	req, err := indicatorsRequest(c)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	res, err := h.dash.Indicators(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleIndicators(c *gin.Context) {
	if res, ok := h.indicators(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartIndicators(c *gin.Context) {
	if res, ok := h.indicators(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func (h *handlers) hodlWaves(c *gin.Context) (*dashboard.HodlWavesResult, bool) {
	p := newParams(c)
	buckets, _ := p.list("buckets")
	req := dashboard.HodlWavesRequest{SessionID: p.session(), Start: p.date("start"), Buckets: buckets}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.HodlWaves(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleHodlWaves(c *gin.Context) {
	if res, ok := h.hodlWaves(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartHodlWaves(c *gin.Context) {
	if res, ok := h.hodlWaves(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func (h *handlers) handleBandList(c *gin.Context) {
	bands, err := h.dash.ListBands(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bands": bands})
}

func (h *handlers) balanceBands(c *gin.Context) (*dashboard.BalanceBandsResult, bool) {
	p := newParams(c)
	bands, _ := p.list("bands")
	req := dashboard.BalanceBandsRequest{
		SessionID: p.session(),
		Bands:     bands,
		Start:     p.date("start"),
		End:       p.date("end"),
		EMA:       p.boolean("ema", false),
		EMASpan:   p.integer("ema_span"),
	}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.BalanceBands(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleBalanceBands(c *gin.Context) {
	if res, ok := h.balanceBands(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartBalanceBands(c *gin.Context) {
	if res, ok := h.balanceBands(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func (h *handlers) movement(c *gin.Context) (*dashboard.MovementResult, bool) {
	p := newParams(c)
	req := dashboard.MovementRequest{Start: p.date("start"), End: p.date("end")}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.Movement(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleMovement(c *gin.Context) {
	if res, ok := h.movement(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartMovement(c *gin.Context) {
	if res, ok := h.movement(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func (h *handlers) candles(c *gin.Context) (*dashboard.CandlesResult, bool) {
	p := newParams(c)
	span, err := candle.ParseSpan(p.str("span"))
	if err != nil {
		p.fail("span", p.str("span"), err)
	}
	req := dashboard.CandlesRequest{Span: span, Start: p.date("start"), End: p.date("end")}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.Candles(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleCandles(c *gin.Context) {
	res, ok := h.candles(c)
	if !ok {
		return
	}
	if c.Query("format") != "csv" {
		c.JSON(http.StatusOK, res)
		return
	}
	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		writeError(c, err)
		return
	}
	attachment(c, res.FileName())
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *handlers) chartCandles(c *gin.Context) {
	if res, ok := h.candles(c); ok {
		writeChart(c, chart.Kline(res.Chart()))
	}
}

func (h *handlers) correlation(c *gin.Context) (*dashboard.CorrelationResult, bool) {
	p := newParams(c)
	tables, _ := p.list("tables")
	features, _ := p.list("features")
	emaFeatures, _ := p.list("ema_features")
	method, err := correlation.ParseMethod(p.str("method"))
	if err != nil {
		p.fail("method", p.str("method"), err)
	}
	req := dashboard.CorrelationRequest{
		Tables:      tables,
		Features:    features,
		Start:       p.date("start"),
		End:         p.date("end"),
		Method:      method,
		EMA:         p.boolean("ema", false),
		EMAFeatures: emaFeatures,
		EMASpan:     p.integer("ema_span"),
	}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.Correlation(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleCorrelation(c *gin.Context) {
	if res, ok := h.correlation(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartCorrelation(c *gin.Context) {
	res, ok := h.correlation(c)
	if !ok {
		return
	}
	if c.Query("format") != "png" {
		writeChart(c, chart.Heatmap(res.Heatmap(chart.Dark)))
		return
	}
	if h.snap == nil {
		writeError(c, fmt.Errorf("%w: png export", errDisabled))
		return
	}
	html, err := chart.HTML(chart.Heatmap(res.Heatmap(chart.Light)))
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.snap.Timeout+5*time.Second)
	defer cancel()
	png, err := h.snap.PNG(ctx, html)
	if err != nil {
		writeError(c, err)
		return
	}
	attachment(c, res.PNGName())
	c.Data(http.StatusOK, "image/png", png)
}

func (h *handlers) pair(c *gin.Context) (*dashboard.PairResult, bool) {
	p := newParams(c)
	method, err := correlation.ParseMethod(p.str("method"))
	if err != nil {
		p.fail("method", p.str("method"), err)
	}
	req := dashboard.PairRequest{
		Feature:     p.str("feature"),
		Start:       p.date("start"),
		End:         p.date("end"),
		Method:      method,
		DiffPrice:   p.boolean("diff_price", false),
		DiffFeature: p.boolean("diff_feature", false),
		Lag:         p.integer("lag"),
	}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.Pair(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handlePair(c *gin.Context) {
	if res, ok := h.pair(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartPair(c *gin.Context) {
	if res, ok := h.pair(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func (h *handlers) threshold(c *gin.Context) (*dashboard.ThresholdResult, bool) {
	p := newParams(c)
	req := dashboard.ThresholdRequest{Start: p.date("start"), End: p.date("end"), Multiplier: p.float("multiplier")}
	if p.err != nil {
		writeError(c, p.err)
		return nil, false
	}
	res, err := h.dash.Threshold(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) handleThreshold(c *gin.Context) {
	if res, ok := h.threshold(c); ok {
		c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) chartThreshold(c *gin.Context) {
	if res, ok := h.threshold(c); ok {
		writeChart(c, chart.TimeSeries(res.Chart()))
	}
}

func writeChart(c *gin.Context, r chart.Renderer) {
	html, err := chart.HTML(r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
