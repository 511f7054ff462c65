package config

import (
	"fmt"
	"strings"

	"onchainvitals/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Warehouse.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Dashboard.validate(); err != nil {
		return err
	}
	return nil
}

func (w *WarehouseConfig) validate() error {
	switch w.Driver {
	case "snowflake":
		if strings.TrimSpace(w.DSN) != "" {
			return nil
		}
		if strings.TrimSpace(w.Account) == "" || strings.TrimSpace(w.User) == "" {
			return fmt.Errorf("warehouse: snowflake requires dsn or account+user")
		}
	case "postgres", "sqlite":
		if strings.TrimSpace(w.DSN) == "" {
			return fmt.Errorf("warehouse: driver %s requires dsn", w.Driver)
		}
	default:
		return fmt.Errorf("warehouse.driver must be snowflake, postgres or sqlite (got %q)", w.Driver)
	}
	if w.QueryTimeoutSeconds <= 0 {
		return fmt.Errorf("warehouse.query_timeout_seconds must be > 0")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	switch c.Backend {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("cache.redis_addr required for redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis (got %q)", c.Backend)
	}
	if raw := strings.TrimSpace(c.WarmInterval); raw != "" {
		if _, ok := scheduler.ParseIntervalDuration(raw); !ok {
			return fmt.Errorf("cache.warm_interval invalid: %s", raw)
		}
	}
	return nil
}

func (d *DashboardConfig) validate() error {
	if _, err := d.StartDate(); err != nil {
		return err
	}
	if d.DefaultEMASpan < 2 || d.DefaultEMASpan > 200 {
		return fmt.Errorf("dashboard.default_ema_span must be within [2,200]")
	}
	if d.DefaultPenalty < 1 || d.DefaultPenalty > 200 {
		return fmt.Errorf("dashboard.default_penalty must be within [1,200]")
	}
	return nil
}
