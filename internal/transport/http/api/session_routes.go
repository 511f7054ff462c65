package apihttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"onchainvitals/internal/drawing"
	"onchainvitals/internal/frame"

	"github.com/gin-gonic/gin"
)

const maxPayloadBytes = 4 << 20

func (h *handlers) handleGetColors(c *gin.Context) {
	if h.colors == nil {
		writeError(c, fmt.Errorf("%w: session colors", errDisabled))
		return
	}
	sess, err := h.colors.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess.ID, "palette": sess.Palette, "colors": sess.Colors, "explicit": sess.Explicit})
}

func (h *handlers) handlePutColors(c *gin.Context) {
	if h.colors == nil {
		writeError(c, fmt.Errorf("%w: session colors", errDisabled))
		return
	}
	var picks map[string]string
	if err := c.ShouldBindJSON(&picks); err != nil {
		writeError(c, fmt.Errorf("%w: %v", drawing.ErrInvalidPayload, err))
		return
	}
	colors, err := h.colors.Set(c.Request.Context(), c.Param("id"), picks)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": c.Param("id"), "colors": colors})
}

func (h *handlers) drawingEnabled(c *gin.Context) bool {
	if h.draw == nil {
		writeError(c, fmt.Errorf("%w: drawing", errDisabled))
		return false
	}
	return true
}

func (h *handlers) handleGetDrawing(c *gin.Context) {
	if !h.drawingEnabled(c) {
		return
	}
	st, err := h.draw.Load(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) handleRelayout(c *gin.Context) {
	if !h.drawingEnabled(c) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", drawing.ErrInvalidPayload, err))
		return
	}
	st, err := h.draw.Relayout(c.Request.Context(), c.Param("key"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type drawingData struct {
	X []any `json:"x"`
	Y []any `json:"y"`
}

// handleSetDrawingData 设置画板的 x/y；带 feature 参数时从仓库读取该特征。
func (h *handlers) handleSetDrawingData(c *gin.Context) {
	if !h.drawingEnabled(c) {
		return
	}
	p := newParams(c)
	var data drawingData
	if ref := p.str("feature"); ref != "" {
		start, end := p.date("start"), p.date("end")
		if p.err != nil {
			writeError(c, p.err)
			return
		}
		f, err := h.dash.FeatureSeries(c.Request.Context(), ref, start, end)
		if err != nil {
			writeError(c, err)
			return
		}
		vals, _ := f.Column(f.Columns()[0])
		for i, t := range f.Index {
			data.X = append(data.X, t.Format(frame.DateLayout))
			data.Y = append(data.Y, vals[i])
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
		if err == nil {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			err = dec.Decode(&data)
		}
		if err != nil {
			writeError(c, fmt.Errorf("%w: %v", drawing.ErrInvalidPayload, err))
			return
		}
	}
	st, err := h.draw.SetData(c.Request.Context(), c.Param("key"), data.X, data.Y)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) handleDrawPage(c *gin.Context) {
	key := c.Param("key")
	if !drawing.ValidKey(key) {
		writeError(c, fmt.Errorf("%w: %q", drawing.ErrInvalidKey, key))
		return
	}
	page := drawing.Page{Title: key, Key: key, Endpoint: "/api/draw/" + key}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
