package apihttp

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"onchainvitals/internal/catalog"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/drawing"
	"onchainvitals/internal/explorer"
	"onchainvitals/internal/logger"
	"onchainvitals/internal/palette"
	"onchainvitals/internal/pkg/circuit"
	"onchainvitals/internal/warehouse"

	"github.com/gin-gonic/gin"
)

var errDisabled = errors.New("feature disabled")

// statusOf 把领域错误映射到 HTTP 状态码与对外文案。
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, dashboard.ErrNoColumns):
		return http.StatusBadRequest, dashboard.Warning(err)
	case errors.Is(err, dashboard.ErrInvalidRequest),
		errors.Is(err, palette.ErrInvalidColor),
		errors.Is(err, drawing.ErrInvalidKey),
		errors.Is(err, drawing.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, dashboard.ErrNoData), errors.Is(err, dashboard.ErrNoOverlap):
		return http.StatusNotFound, dashboard.Warning(err)
	case errors.Is(err, dashboard.ErrNotFound), errors.Is(err, catalog.ErrUnknown):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, explorer.ErrNotFound):
		return http.StatusNotFound, sentence(strings.TrimPrefix(err.Error(), explorer.ErrNotFound.Error()+": "))
	case errors.Is(err, circuit.ErrOpen), errors.Is(err, explorer.ErrUnavailable), errors.Is(err, errDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, warehouse.ErrQuery):
		return http.StatusBadGateway, "warehouse query failed"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[api] %s %s failed status=%d err=%v", c.Request.Method, c.Request.URL.Path, status, err)
	} else {
		logger.Debugf("[api] %s %s rejected status=%d err=%v", c.Request.Method, c.Request.URL.Path, status, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// sentence 把首字母改成大写。
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
