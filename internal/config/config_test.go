package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"ONCHAINVITALS_LOG_LEVEL", "ONCHAINVITALS_HTTP_ADDR", "WAREHOUSE_DRIVER", "WAREHOUSE_DSN",
		"SNOWFLAKE_ACCOUNT", "SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "REDIS_ADDR", "REDIS_DB"} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
warehouse:
  driver: sqlite
  dsn: "file::memory:"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8501", cfg.App.HTTPAddr)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.Warehouse.QueryTimeout())
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 20, cfg.Dashboard.DefaultEMASpan)
	assert.Equal(t, 10, cfg.Dashboard.DefaultPenalty)
	start, err := cfg.Dashboard.StartDate()
	require.NoError(t, err)
	assert.Equal(t, 2015, start.Year())
	assert.Zero(t, cfg.Cache.WarmEvery())
}

func TestLoadIncludeAndEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  log_level: debug
cache:
  backend: none
  warm_interval: 15m
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
warehouse:
  driver: snowflake
  account: acct
  user: reader
dashboard:
  default_ema_span: 30
`)
	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("ONCHAINVITALS_HTTP_ADDR", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9000", cfg.App.HTTPAddr)
	assert.Equal(t, "secret", cfg.Warehouse.Password)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Cache.WarmEvery())
	assert.Equal(t, 30, cfg.Dashboard.DefaultEMASpan)
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cases := map[string]string{
		"unknown driver":  "warehouse:\n  driver: oracle\n",
		"missing account": "warehouse:\n  driver: snowflake\n",
		"sqlite no dsn":   "warehouse:\n  driver: sqlite\n",
		"bad span":        "warehouse:\n  driver: sqlite\n  dsn: x\ndashboard:\n  default_ema_span: 500\n",
		"bad interval":    "warehouse:\n  driver: sqlite\n  dsn: x\ncache:\n  warm_interval: soon\n",
		"redis no addr":   "warehouse:\n  driver: sqlite\n  dsn: x\ncache:\n  backend: redis\n  redis_addr: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "c.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
