package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"onchainvitals/internal/cache"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/chart"
	"onchainvitals/internal/config"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/drawing"
	"onchainvitals/internal/explorer"
	"onchainvitals/internal/logger"
	"onchainvitals/internal/metrics"
	"onchainvitals/internal/palette"
	"onchainvitals/internal/pkg/circuit"
	"onchainvitals/internal/store/gormstore"
	apihttp "onchainvitals/internal/transport/http/api"
	"onchainvitals/internal/warehouse"
)

type AppBuilder struct {
	cfg *config.Config

	warehouseFn func(context.Context, config.WarehouseConfig) (*sql.DB, warehouse.Dialect, error)
	cacheFn     func(context.Context, config.CacheConfig) (cache.Cache, error)
	catalogFn   func(config.CatalogConfig) (*catalog.Registry, error)
	storeFn     func(config.StoreConfig) (*gormstore.GormStore, error)
}

type AppBuilderOption func(*AppBuilder)

// WithWarehouseDB 使用现成的连接池，跳过 warehouse.Open。
func WithWarehouseDB(db *sql.DB, d warehouse.Dialect) AppBuilderOption {
	return func(b *AppBuilder) {
		b.warehouseFn = func(context.Context, config.WarehouseConfig) (*sql.DB, warehouse.Dialect, error) {
			return db, d, nil
		}
	}
}

// WithCatalog 使用现成的目录。
func WithCatalog(reg *catalog.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.catalogFn = func(config.CatalogConfig) (*catalog.Registry, error) { return reg, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		warehouseFn: warehouse.Open,
		cacheFn:     cache.New,
		catalogFn:   loadCatalog,
		storeFn:     openStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Registry, error) {
	return catalog.NewRegistry(cfg.Path, cfg.Watch)
}

func openStore(cfg config.StoreConfig) (*gormstore.GormStore, error) {
	return gormstore.NewGormStore(cfg.Path)
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg, err := b.catalogFn(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.catalog = reg
	snap := reg.Snapshot()
	metrics.CatalogVersion.Set(float64(snap.Version))
	reg.Subscribe(func(s catalog.Snapshot) {
		metrics.CatalogVersion.Set(float64(s.Version))
		logger.Infof("✓ 指标目录已重载 version=%d metrics=%d", s.Version, len(s.Doc.Metrics))
	})
	logger.Infof("✓ 已加载指标目录 %s: %d 个 metric", snap.Source, len(snap.Doc.Metrics))

	c, err := b.cacheFn(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	a.cache = c

	db, dialect, err := b.warehouseFn(ctx, cfg.Warehouse)
	if err != nil {
		return nil, err
	}
	a.warehouse = warehouse.NewClient(db, dialect, warehouse.Options{
		Timeout:  cfg.Warehouse.QueryTimeout(),
		CacheTTL: cfg.Cache.TTL(),
		Breaker:  circuit.NewCircuitBreaker("warehouse", cfg.Warehouse.BreakerThreshold, cfg.Warehouse.BreakerCooldown()),
		Cache:    c,
	})

	st, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.store = st

	colors := palette.NewManager(st)
	a.dashboard = dashboard.NewService(a.warehouse, reg, cfg.Dashboard, dashboard.WithPalette(colors))
	snapshotter := chart.NewSnapshotter(cfg.Render.Width, cfg.Render.Height,
		time.Duration(cfg.Render.TimeoutSeconds)*time.Second, cfg.Render.Headless)

	a.http, err = apihttp.NewServer(apihttp.ServerConfig{
		Addr:        cfg.App.HTTPAddr,
		Dashboard:   a.dashboard,
		Explorer:    explorer.NewService(a.warehouse, reg),
		Palette:     colors,
		Drawing:     drawing.NewService(st),
		Snapshotter: snapshotter,
		Health: func(ctx context.Context) error {
			return errors.Join(a.warehouse.Ping(ctx), st.Ping(ctx))
		},
	})
	if err != nil {
		return nil, err
	}

	a.Summary = &StartupSummary{
		Env:       cfg.App.Env,
		HTTPAddr:  a.http.Addr(),
		Driver:    dialect.Name,
		Catalog:   snap.Source,
		Metrics:   snap.Names(),
		Cache:     cfg.Cache.Backend,
		WarmEvery: cfg.Cache.WarmEvery(),
		StorePath: cfg.Store.Path,
	}
	return a, nil
}
