// Package warehouse 执行目录驱动的只读查询：方言渲染、绑定参数、超时、熔断与结果缓存。
package warehouse

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"onchainvitals/internal/cache"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/frame"
	"onchainvitals/internal/logger"
	"onchainvitals/internal/metrics"
	"onchainvitals/internal/pkg/circuit"
	"onchainvitals/internal/pkg/convert"
	"onchainvitals/internal/pkg/text"
)

const maxLoggedSQL = 240

// ErrQuery 包装所有仓库执行失败（不含熔断）。
var ErrQuery = errors.New("warehouse query failed")

// Result 是一次查询的原始结果，[]byte 已转为 string，可安全 JSON 缓存。
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Row 是按列名索引的一行。
type Row map[string]any

// Maps 把结果转换成按列名索引的行。
func (r *Result) Maps() []Row {
	out := make([]Row, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row := make(Row, len(r.Columns))
		for i, c := range r.Columns {
			row[c] = raw[i]
		}
		out = append(out, row)
	}
	return out
}

type Options struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Breaker  *circuit.CircuitBreaker
	Cache    cache.Cache
}

// Client 是仓库查询入口，并发安全。
type Client struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	ttl     time.Duration
	breaker *circuit.CircuitBreaker
	cache   cache.Cache
}

func NewClient(db *sql.DB, d Dialect, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Breaker == nil {
		opts.Breaker = circuit.NewCircuitBreaker("warehouse", 5, 30*time.Second)
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	opts.Breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
		metrics.BreakerState.Set(float64(to))
		logger.Warnf("CircuitBreaker %s state change: %s -> %s", name, from, to)
	})
	return &Client{
		db:      db,
		dialect: d,
		timeout: opts.Timeout,
		ttl:     opts.CacheTTL,
		breaker: opts.Breaker,
		cache:   opts.Cache,
	}
}

func (c *Client) Dialect() Dialect { return c.dialect }

func (c *Client) Close() error {
	return c.db.Close()
}

// Ping 检查连接可用。
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Run 执行查询，优先读取缓存。
func (c *Client) Run(ctx context.Context, q Query) (*Result, error) {
	key := cacheKey(c.dialect, q)
	if raw, ok := cache.Lookup(ctx, c.cache, key); ok {
		if res, err := decodeResult(raw); err == nil {
			return res, nil
		}
		logger.Warnf("drop undecodable cache entry for %s", q.Name)
	}
	res, err := c.execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(res); err == nil {
		_ = c.cache.Set(ctx, key, raw, c.ttl)
	}
	return res, nil
}

// Refresh 绕过缓存执行并覆盖缓存。
func (c *Client) Refresh(ctx context.Context, q Query) (*Result, error) {
	res, err := c.execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(res); err == nil {
		_ = c.cache.Set(ctx, cacheKey(c.dialect, q), raw, c.ttl)
	}
	return res, nil
}

func (c *Client) execute(ctx context.Context, q Query) (*Result, error) {
	var res *Result
	start := time.Now()
	err := c.breaker.Do(func() error {
		qctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		var err error
		res, err = c.query(qctx, q)
		return err
	}, func(err error) bool {
		// 调用方主动取消不算仓库故障
		return errors.Is(err, context.Canceled) && ctx.Err() != nil
	})
	metrics.QueryDuration.WithLabelValues(q.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, circuit.ErrOpen):
			metrics.QueryErrors.WithLabelValues(q.Name, "circuit_open").Inc()
			return nil, err
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, context.Canceled):
			reason = "canceled"
		}
		metrics.QueryErrors.WithLabelValues(q.Name, reason).Inc()
		logger.Warnf("warehouse query %s failed after %s: %v sql=%s", q.Name, time.Since(start).Round(time.Millisecond), err,
			text.Truncate(text.OneLine(q.SQL), maxLoggedSQL))
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, q.Name, err)
	}
	logger.Debugf("warehouse query %s rows=%d took=%s", q.Name, len(res.Rows), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (c *Client) query(ctx context.Context, q Query) (*Result, error) {
	rows, err := c.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

func cacheKey(d Dialect, q Query) string {
	h := sha256.New()
	h.Write([]byte(d.Name))
	h.Write([]byte{0})
	h.Write([]byte(q.SQL))
	for _, a := range q.Args {
		fmt.Fprintf(h, "\x00%T:%v", a, a)
	}
	return q.Name + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func decodeResult(raw []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var res Result
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Series 读取 metric 的指定列，返回以日期为索引的 frame。
func (c *Client) Series(ctx context.Context, m catalog.Metric, cols []string, start, end time.Time) (*frame.Frame, error) {
	q, err := SeriesQuery(c.dialect, m, cols, start, end)
	if err != nil {
		return nil, err
	}
	res, err := c.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return wideFrame(res, cols)
}

// Price 读取 BTC 价格序列，列名为 ValueCol。
func (c *Client) Price(ctx context.Context, p catalog.PriceSource, start, end time.Time) (*frame.Frame, error) {
	q, err := PriceQuery(c.dialect, p, start, end)
	if err != nil {
		return nil, err
	}
	res, err := c.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return wideFrame(res, []string{p.ValueCol})
}

// Long 执行返回 (日期, 分类, 值) 的查询。
func (c *Client) Long(ctx context.Context, q Query) ([]frame.LongRow, error) {
	res, err := c.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]frame.LongRow, 0, len(res.Rows))
	for _, raw := range res.Rows {
		if len(raw) < 3 {
			return nil, fmt.Errorf("%s: expected 3 columns, got %d", q.Name, len(raw))
		}
		t, err := convert.ToTime(raw[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, err)
		}
		out = append(out, frame.LongRow{Date: t, Key: convert.ToString(raw[1]), Value: convert.FloatOrNaN(raw[2])})
	}
	return out, nil
}

// Strings 返回首列的字符串值。
func (c *Client) Strings(ctx context.Context, q Query) ([]string, error) {
	res, err := c.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Rows))
	for _, raw := range res.Rows {
		if len(raw) == 0 || raw[0] == nil {
			continue
		}
		out = append(out, convert.ToString(raw[0]))
	}
	return out, nil
}

// wideFrame 把 (日期, 列...) 结果转成 frame；列按位置对应 names。
func wideFrame(res *Result, names []string) (*frame.Frame, error) {
	if len(res.Columns) != len(names)+1 {
		return nil, fmt.Errorf("expected %d columns, got %d", len(names)+1, len(res.Columns))
	}
	dates := make([]time.Time, 0, len(res.Rows))
	cols := make(map[string][]float64, len(names))
	for _, n := range names {
		cols[n] = make([]float64, 0, len(res.Rows))
	}
	for _, raw := range res.Rows {
		if raw[0] == nil {
			continue
		}
		t, err := convert.ToTime(raw[0])
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
		for i, n := range names {
			v := convert.FloatOrNaN(raw[i+1])
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			cols[n] = append(cols[n], v)
		}
	}
	return frame.FromColumns(dates, cols, names)
}
