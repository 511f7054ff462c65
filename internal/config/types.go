package config

import (
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/scheduler"
)

// Config 是 onchainvitals 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Warehouse WarehouseConfig `toml:"warehouse"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Cache     CacheConfig     `toml:"cache"`
	Store     StoreConfig     `toml:"store"`
	Render    RenderConfig    `toml:"render"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// WarehouseConfig 描述只读数据仓库的连接方式。
type WarehouseConfig struct {
	Driver    string `toml:"driver"` // snowflake | postgres | sqlite
	DSN       string `toml:"dsn"`    // 若设置则直接使用，忽略下面的分项
	Account   string `toml:"account"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	Schema    string `toml:"schema"`
	Warehouse string `toml:"warehouse"`
	Role      string `toml:"role"`

	QueryTimeoutSeconds    int `toml:"query_timeout_seconds"`
	MaxOpenConns           int `toml:"max_open_conns"`
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

func (w WarehouseConfig) QueryTimeout() time.Duration {
	return time.Duration(w.QueryTimeoutSeconds) * time.Second
}

func (w WarehouseConfig) BreakerCooldown() time.Duration {
	return time.Duration(w.BreakerCooldownSeconds) * time.Second
}

type CatalogConfig struct {
	// Path 为空时使用内置目录。
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// CacheConfig 控制查询结果缓存。
type CacheConfig struct {
	Backend       string `toml:"backend"` // none | memory | redis
	TTLSeconds    int    `toml:"ttl_seconds"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	WarmInterval  string `toml:"warm_interval"` // "15m", "1h", "" = disabled
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// WarmEvery 返回预热间隔，未配置或非法时为 0。
func (c CacheConfig) WarmEvery() time.Duration {
	d, _ := scheduler.ParseIntervalDuration(c.WarmInterval)
	return d
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type RenderConfig struct {
	Headless       bool `toml:"headless"`
	Width          int  `toml:"width"`
	Height         int  `toml:"height"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// DashboardConfig 保存各页面控件的默认值。
type DashboardConfig struct {
	DefaultStartDate string `toml:"default_start_date"`
	DefaultEMASpan   int    `toml:"default_ema_span"`
	DefaultPenalty   int    `toml:"default_penalty"`
	MaxCPDSamples    int    `toml:"max_cpd_samples"`
}

// StartDate 解析默认起始日期。
func (d DashboardConfig) StartDate() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(d.DefaultStartDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("dashboard.default_start_date: %w", err)
	}
	return t, nil
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
