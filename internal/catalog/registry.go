package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"onchainvitals/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

//go:embed catalog.schema.json
var schemaJSON string

// ErrUnknown 表示目录中找不到对应的 metric 或列。
var ErrUnknown = errors.New("catalog: unknown entry")

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

// Snapshot 公开的目录快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Source   string
	Doc      Document

	byName map[string]int
}

// Metric 按名字（忽略大小写）查找。
func (s Snapshot) Metric(name string) (Metric, bool) {
	idx, ok := s.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Metric{}, false
	}
	return s.Doc.Metrics[idx], true
}

// Names 按目录顺序返回所有 metric 名字。
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.Doc.Metrics))
	for _, m := range s.Doc.Metrics {
		out = append(out, m.Name)
	}
	return out
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理 metric 目录，支持文件热加载。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取目录文件；path 为空时使用内置目录。watch 为 true 时监听文件变化。
func NewRegistry(path string, watch bool) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewRegistryFromBytes(defaultCatalog, "embedded")
	}
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read catalog failed: %w", err)
		}
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("catalog reload failed, keeping version %d: %v", r.Snapshot().Version, err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
		r.v = v
	}
	return r, nil
}

// NewRegistryFromBytes 从内存中的 YAML 构建一个不可热加载的 registry。
func NewRegistryFromBytes(raw []byte, source string) (*Registry, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.install(doc, source)
	return r, nil
}

// Reload 手动重新读取目录文件。失败时保留旧快照。
func (r *Registry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("catalog registry has no backing file")
	}
	if err := r.reload(); err != nil {
		return err
	}
	r.notifyListeners()
	return nil
}

// Snapshot 返回当前目录。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Metric 返回指定名字的 metric。
func (r *Registry) Metric(name string) (Metric, error) {
	m, ok := r.Snapshot().Metric(name)
	if !ok {
		return Metric{}, fmt.Errorf("%w: metric %q", ErrUnknown, name)
	}
	return m, nil
}

// Feature 解析 "NAME:COL" 引用，返回 metric 与规范化后的列名。
func (r *Registry) Feature(ref string) (Metric, string, error) {
	name, col, ok := strings.Cut(ref, ":")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(col) == "" {
		return Metric{}, "", fmt.Errorf("%w: feature %q must look like TABLE:COLUMN", ErrUnknown, ref)
	}
	m, err := r.Metric(name)
	if err != nil {
		return Metric{}, "", err
	}
	canon := m.Column(col)
	if canon == "" {
		return Metric{}, "", fmt.Errorf("%w: column %q not in %s", ErrUnknown, col, m.Name)
	}
	return m, canon, nil
}

// Features 列出全部 "NAME:COL" 引用，按目录顺序。
func (r *Registry) Features() []string {
	snap := r.Snapshot()
	var out []string
	for _, m := range snap.Doc.Metrics {
		for _, c := range m.Columns {
			out = append(out, m.FeatureRef(c))
		}
	}
	return out
}

// Subscribe 注册重载回调。
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read catalog failed: %w", err)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return err
	}
	r.install(doc, filepath.Base(r.path))
	return nil
}

func (r *Registry) install(doc Document, source string) {
	byName := make(map[string]int, len(doc.Metrics))
	for i, m := range doc.Metrics {
		byName[strings.ToUpper(m.Name)] = i
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Source:   source,
		Doc:      doc,
		byName:   byName,
	}
	r.mu.Unlock()
	logger.Infof("Catalog loaded %d metrics from %s", len(doc.Metrics), source)
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("catalog listener")
			cb(snap)
		}(fn)
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func parseDocument(raw []byte) (Document, error) {
	if err := validateSchema(raw); err != nil {
		return Document{}, err
	}
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("parse catalog failed: %w", err)
	}
	doc.normalize()
	if err := doc.validate(); err != nil {
		return Document{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return doc, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("catalog.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("catalog.schema.json")
	})
	return schemaCompiled, schemaErr
}

// validateSchema 把 YAML 转成 JSON 值后交给 jsonschema 校验。
func validateSchema(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile catalog schema failed: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parse catalog failed: %w", err)
	}
	buf, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("catalog is not json-compatible: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("catalog schema validation failed: %w", err)
	}
	return nil
}
