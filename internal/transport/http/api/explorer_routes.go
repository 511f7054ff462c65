package apihttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"onchainvitals/internal/dashboard"

	"github.com/gin-gonic/gin"
)

func (h *handlers) explorerEnabled(c *gin.Context) bool {
	if h.explorer == nil {
		writeError(c, fmt.Errorf("%w: explorer", errDisabled))
		return false
	}
	return true
}

func (h *handlers) handleLatestBlocks(c *gin.Context) {
	if !h.explorerEnabled(c) {
		return
	}
	blocks, err := h.explorer.Latest(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

func (h *handlers) handleBlock(c *gin.Context) {
	if !h.explorerEnabled(c) {
		return
	}
	raw := strings.TrimSpace(c.Param("number"))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		writeError(c, fmt.Errorf("%w: block number %q", dashboard.ErrInvalidRequest, raw))
		return
	}
	detail, err := h.explorer.Block(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handlers) handleTransaction(c *gin.Context) {
	if !h.explorerEnabled(c) {
		return
	}
	detail, err := h.explorer.Transaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handlers) handleSearch(c *gin.Context) {
	if !h.explorerEnabled(c) {
		return
	}
	res, err := h.explorer.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
