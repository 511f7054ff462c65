package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/config"
	"onchainvitals/internal/logger"

	_ "github.com/lib/pq"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"
)

// Open 按配置建立连接池并做一次 ping。
func Open(ctx context.Context, cfg config.WarehouseConfig) (*sql.DB, Dialect, error) {
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(d.Name, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s warehouse failed: %w", d.Name, err)
	}
	maxConns := cfg.MaxOpenConns
	if d.Name == SQLite.Name {
		maxConns = 1
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s warehouse failed: %w", d.Name, err)
	}
	logger.Infof("Warehouse connected driver=%s max_conns=%d", d.Name, maxConns)
	return db, d, nil
}

func buildDSN(cfg config.WarehouseConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if !strings.EqualFold(cfg.Driver, Snowflake.Name) {
		return "", fmt.Errorf("warehouse: driver %s requires dsn", cfg.Driver)
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn failed: %w", err)
	}
	return dsn, nil
}
