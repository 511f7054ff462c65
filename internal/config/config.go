package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取配置文件（支持 include），叠加环境变量后应用默认值并校验。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	applyEnvOverrides(&cfg, setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := collectConfigFiles(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := collectConfigFiles(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			ordered = append(ordered, sub...)
		}
	}
	delete(stack, path)
	seen[path] = true
	ordered = append(ordered, path)
	return ordered, nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	switch val := raw.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("include only supports strings")
			}
			str = strings.TrimSpace(str)
			if str != "" {
				out = append(out, str)
			}
		}
		return out, nil
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			keyStr, ok := k.(string)
			if !ok {
				continue
			}
			next := strings.ToLower(strings.TrimSpace(keyStr))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}

// envBinding 将环境变量映射到配置字段；环境变量优先于文件。
type envBinding struct {
	env string
	key string
	set func(string) error
}

func applyEnvOverrides(cfg *Config, keys keySet) {
	strSetter := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	intSetter := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}
	w := &cfg.Warehouse
	bindings := []envBinding{
		{env: "ONCHAINVITALS_LOG_LEVEL", key: "app.log_level", set: strSetter(&cfg.App.LogLevel)},
		{env: "ONCHAINVITALS_HTTP_ADDR", key: "app.http_addr", set: strSetter(&cfg.App.HTTPAddr)},
		{env: "WAREHOUSE_DRIVER", key: "warehouse.driver", set: strSetter(&w.Driver)},
		{env: "WAREHOUSE_DSN", key: "warehouse.dsn", set: strSetter(&w.DSN)},
		{env: "SNOWFLAKE_ACCOUNT", key: "warehouse.account", set: strSetter(&w.Account)},
		{env: "SNOWFLAKE_USER", key: "warehouse.user", set: strSetter(&w.User)},
		{env: "SNOWFLAKE_PASSWORD", key: "warehouse.password", set: strSetter(&w.Password)},
		{env: "SNOWFLAKE_DATABASE", key: "warehouse.database", set: strSetter(&w.Database)},
		{env: "SNOWFLAKE_SCHEMA", key: "warehouse.schema", set: strSetter(&w.Schema)},
		{env: "SNOWFLAKE_WAREHOUSE", key: "warehouse.warehouse", set: strSetter(&w.Warehouse)},
		{env: "SNOWFLAKE_ROLE", key: "warehouse.role", set: strSetter(&w.Role)},
		{env: "REDIS_ADDR", key: "cache.redis_addr", set: strSetter(&cfg.Cache.RedisAddr)},
		{env: "REDIS_PASSWORD", key: "cache.redis_password", set: strSetter(&cfg.Cache.RedisPassword)},
		{env: "REDIS_DB", key: "cache.redis_db", set: intSetter(&cfg.Cache.RedisDB)},
	}
	for _, b := range bindings {
		raw, ok := os.LookupEnv(b.env)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}
		if err := b.set(raw); err != nil {
			continue
		}
		keys.mark(b.key)
	}
}
