package app

import (
	"context"
	"fmt"

	"onchainvitals/internal/cache"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/config"
	"onchainvitals/internal/dashboard"
	"onchainvitals/internal/logger"
	"onchainvitals/internal/store/gormstore"
	apihttp "onchainvitals/internal/transport/http/api"
	"onchainvitals/internal/warehouse"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务与缓存预热。
type App struct {
	cfg       *config.Config
	warehouse *warehouse.Client
	cache     cache.Cache
	catalog   *catalog.Registry
	store     *gormstore.GormStore
	dashboard *dashboard.Service
	http      *apihttp.Server
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run 启动 HTTP 服务与缓存预热，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	if interval := a.cfg.Cache.WarmEvery(); interval > 0 {
		group.Go(func() error {
			a.dashboard.RunWarmer(ctx, interval)
			return nil
		})
	}
	return group.Wait()
}

// Close 释放仓库连接、缓存与本地库。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.warehouse != nil {
		if err := a.warehouse.Close(); err != nil {
			logger.Warnf("close warehouse: %v", err)
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Handler 暴露 HTTP handler，测试用。
func (a *App) HTTP() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.http
}
