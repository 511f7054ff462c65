package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"onchainvitals/internal/config"
	"onchainvitals/internal/store/gormstore"
	"onchainvitals/internal/warehouse"
	"onchainvitals/internal/warehouse/warehousetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", LogLevel: "warn", HTTPAddr: "127.0.0.1:0"},
		Warehouse: config.WarehouseConfig{Driver: "sqlite", DSN: ":memory:", QueryTimeoutSeconds: 5, BreakerThreshold: 3, BreakerCooldownSeconds: 1},
		Cache:     config.CacheConfig{Backend: "memory", TTLSeconds: 60},
		Store:     config.StoreConfig{Path: gormstore.MemoryPath},
		Dashboard: config.DashboardConfig{DefaultStartDate: "2024-01-01", DefaultEMASpan: 20, DefaultPenalty: 10, MaxCPDSamples: 500},
	}
}

func TestBuildServesDashboard(t *testing.T) {
	b := NewAppBuilder(testConfig(),
		WithWarehouseDB(warehousetest.DB(t), warehouse.SQLite),
		WithCatalog(warehousetest.Catalog(t)),
	)
	a, err := b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Summary)
	assert.Equal(t, "sqlite", a.Summary.Driver)
	assert.Equal(t, "memory", a.Summary.Cache)
	assert.NotEmpty(t, a.Summary.Metrics)

	h := a.HTTP().Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/indicators?metric=SOPR&start=2024-01-01", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SOPR")
}

func TestBuildRejectsNilConfig(t *testing.T) {
	_, err := NewAppBuilder(nil).Build(context.Background())
	assert.Error(t, err)
	_, err = NewApp(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	b := NewAppBuilder(testConfig(),
		WithWarehouseDB(warehousetest.DB(t), warehouse.SQLite),
		WithCatalog(warehousetest.Catalog(t)),
	)
	a, err := b.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
