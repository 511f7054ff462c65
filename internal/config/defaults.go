package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":8501"
	defaultWarehouseDriver  = "snowflake"
	defaultQueryTimeout     = 60
	defaultMaxOpenConns     = 4
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30
	defaultCacheBackend     = "memory"
	defaultCacheTTL         = 600
	defaultRedisAddr        = "localhost:6379"
	defaultStorePath        = "data/onchainvitals.db"
	defaultRenderWidth      = 1600
	defaultRenderHeight     = 900
	defaultRenderTimeout    = 20
	defaultStartDate        = "2015-01-01"
	defaultEMASpan          = 20
	defaultPenalty          = 10
	defaultMaxCPDSamples    = 2000
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Warehouse.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Render.applyDefaults(keys)
	c.Dashboard.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (w *WarehouseConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("warehouse.driver", &w.Driver, defaultWarehouseDriver),
		intFieldDefault("warehouse.query_timeout_seconds", &w.QueryTimeoutSeconds, defaultQueryTimeout),
		intFieldDefault("warehouse.max_open_conns", &w.MaxOpenConns, defaultMaxOpenConns),
		intFieldDefault("warehouse.breaker_threshold", &w.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("warehouse.breaker_cooldown_seconds", &w.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	w.Driver = strings.ToLower(strings.TrimSpace(w.Driver))
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("cache.backend", &c.Backend, defaultCacheBackend),
		intFieldDefault("cache.ttl_seconds", &c.TTLSeconds, defaultCacheTTL),
		stringFieldDefault("cache.redis_addr", &c.RedisAddr, defaultRedisAddr),
	)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (r *RenderConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("render.width", &r.Width, defaultRenderWidth),
		intFieldDefault("render.height", &r.Height, defaultRenderHeight),
		intFieldDefault("render.timeout_seconds", &r.TimeoutSeconds, defaultRenderTimeout),
	)
}

func (d *DashboardConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("dashboard.default_start_date", &d.DefaultStartDate, defaultStartDate),
		intFieldDefault("dashboard.default_ema_span", &d.DefaultEMASpan, defaultEMASpan),
		intFieldDefault("dashboard.default_penalty", &d.DefaultPenalty, defaultPenalty),
		intFieldDefault("dashboard.max_cpd_samples", &d.MaxCPDSamples, defaultMaxCPDSamples),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
