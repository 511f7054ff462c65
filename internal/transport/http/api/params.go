package apihttp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"onchainvitals/internal/dashboard"

	"github.com/gin-gonic/gin"
)

// params 累积查询参数解析错误，只保留第一个。
type params struct {
	c   *gin.Context
	err error
}

func newParams(c *gin.Context) *params { return &params{c: c} }

func (p *params) fail(key, raw string, cause error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", dashboard.ErrInvalidRequest, key, raw, cause)
	}
}

func (p *params) str(key string) string { return strings.TrimSpace(p.c.Query(key)) }

func (p *params) date(key string) time.Time {
	raw := p.str(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return t
}

func (p *params) integer(key string) int {
	raw := p.str(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *params) float(key string) float64 {
	raw := p.str(key)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

func (p *params) boolean(key string, def bool) bool {
	raw := p.str(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return b
}

// list 同时支持重复参数与逗号分隔；present 表示参数是否出现过。
func (p *params) list(key string) (vals []string, present bool) {
	raw, present := p.c.GetQueryArray(key)
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			if v = strings.TrimSpace(v); v != "" {
				vals = append(vals, v)
			}
		}
	}
	return vals, present
}

// session 取会话 id：查询参数优先，其次 X-Session-ID 头。
func (p *params) session() string {
	if s := p.str("session"); s != "" {
		return s
	}
	return strings.TrimSpace(p.c.GetHeader("X-Session-ID"))
}
