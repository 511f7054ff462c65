package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern 约束可以拼进 SQL 的表名/列名。
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)*$`)

// Aggregate 是 metric 在按日聚合时使用的函数。
type Aggregate string

const (
	AggregateNone Aggregate = ""
	AggregateSum  Aggregate = "sum"
	AggregateAvg  Aggregate = "avg"
	AggregateMin  Aggregate = "min"
	AggregateMax  Aggregate = "max"
)

// Metric 描述一张按日期索引的指标表。
type Metric struct {
	Name      string    `yaml:"name" json:"name"`
	Table     string    `yaml:"table" json:"table"`
	DateCol   string    `yaml:"date_col" json:"date_col"`
	Columns   []string  `yaml:"columns" json:"columns"`
	Aggregate Aggregate `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
}

// Column returns the catalog spelling of col (case-insensitive), or "" if the
// metric has no such column.
func (m Metric) Column(col string) string {
	col = strings.TrimSpace(col)
	for _, c := range m.Columns {
		if strings.EqualFold(c, col) {
			return c
		}
	}
	return ""
}

// FeatureRef 返回 "NAME:COL" 形式的特征引用。
func (m Metric) FeatureRef(col string) string {
	return m.Name + ":" + col
}

type PriceSource struct {
	Name     string `yaml:"name" json:"name"`
	Table    string `yaml:"table" json:"table"`
	DateCol  string `yaml:"date_col" json:"date_col"`
	ValueCol string `yaml:"value_col" json:"value_col"`
}

// Bucket maps a warehouse age bucket to its display label.
type Bucket struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

type HodlWavesSource struct {
	Name      string   `yaml:"name" json:"name"`
	Table     string   `yaml:"table" json:"table"`
	DateCol   string   `yaml:"date_col" json:"date_col"`
	BucketCol string   `yaml:"bucket_col" json:"bucket_col"`
	ValueCol  string   `yaml:"value_col" json:"value_col"`
	Buckets   []Bucket `yaml:"buckets" json:"buckets"`
}

// Labels 按目录顺序返回桶的展示名。
func (h HodlWavesSource) Labels() []string {
	out := make([]string, 0, len(h.Buckets))
	for _, b := range h.Buckets {
		out = append(out, b.Label)
	}
	return out
}

type BalanceBandsSource struct {
	Table    string `yaml:"table" json:"table"`
	DateCol  string `yaml:"date_col" json:"date_col"`
	BandCol  string `yaml:"band_col" json:"band_col"`
	ValueCol string `yaml:"value_col" json:"value_col"`
}

type MovementSource struct {
	Table    string `yaml:"table" json:"table"`
	DateCol  string `yaml:"date_col" json:"date_col"`
	PriceCol string `yaml:"price_col" json:"price_col"`
	StateCol string `yaml:"state_col" json:"state_col"`
}

// ExplorerSource 指向区块浏览器使用的四张事实表。
type ExplorerSource struct {
	Blocks       string `yaml:"blocks" json:"blocks"`
	Transactions string `yaml:"transactions" json:"transactions"`
	Inputs       string `yaml:"inputs" json:"inputs"`
	Outputs      string `yaml:"outputs" json:"outputs"`
}

// Document 是目录文件的完整结构。
type Document struct {
	Price        PriceSource        `yaml:"price" json:"price"`
	HodlWaves    HodlWavesSource    `yaml:"hodl_waves" json:"hodl_waves"`
	BalanceBands BalanceBandsSource `yaml:"balance_bands" json:"balance_bands"`
	Movement     MovementSource     `yaml:"movement" json:"movement"`
	Explorer     ExplorerSource     `yaml:"explorer" json:"explorer"`
	Metrics      []Metric           `yaml:"metrics" json:"metrics"`
}

// ValidIdent reports whether s is safe to render as a (dotted) SQL identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

func (d *Document) normalize() {
	trim := func(p *string) { *p = strings.TrimSpace(*p) }
	trim(&d.Price.Name)
	if d.Price.Name == "" {
		d.Price.Name = "BTC PRICE"
	}
	trim(&d.HodlWaves.Name)
	if d.HodlWaves.Name == "" {
		d.HodlWaves.Name = "HODL WAVES"
	}
	for i := range d.Metrics {
		m := &d.Metrics[i]
		trim(&m.Name)
		trim(&m.Table)
		trim(&m.DateCol)
		m.Aggregate = Aggregate(strings.ToLower(strings.TrimSpace(string(m.Aggregate))))
		for j := range m.Columns {
			trim(&m.Columns[j])
		}
	}
}

func (d Document) validate() error {
	seen := make(map[string]bool, len(d.Metrics))
	for _, m := range d.Metrics {
		key := strings.ToUpper(m.Name)
		if m.Name == "" {
			return fmt.Errorf("metric name is empty")
		}
		if strings.Contains(m.Name, ":") {
			return fmt.Errorf("metric %q: name must not contain ':'", m.Name)
		}
		if seen[key] {
			return fmt.Errorf("duplicate metric name %q", m.Name)
		}
		seen[key] = true
		if len(m.Columns) == 0 {
			return fmt.Errorf("metric %q has no columns", m.Name)
		}
		idents := append([]string{m.Table, m.DateCol}, m.Columns...)
		for _, id := range idents {
			if !ValidIdent(id) {
				return fmt.Errorf("metric %q: invalid identifier %q", m.Name, id)
			}
		}
		switch m.Aggregate {
		case AggregateNone, AggregateSum, AggregateAvg, AggregateMin, AggregateMax:
		default:
			return fmt.Errorf("metric %q: unsupported aggregate %q", m.Name, m.Aggregate)
		}
	}
	fixed := map[string]string{
		"price.table":             d.Price.Table,
		"price.date_col":          d.Price.DateCol,
		"price.value_col":         d.Price.ValueCol,
		"hodl_waves.table":        d.HodlWaves.Table,
		"hodl_waves.date_col":     d.HodlWaves.DateCol,
		"hodl_waves.bucket_col":   d.HodlWaves.BucketCol,
		"hodl_waves.value_col":    d.HodlWaves.ValueCol,
		"balance_bands.table":     d.BalanceBands.Table,
		"balance_bands.date_col":  d.BalanceBands.DateCol,
		"balance_bands.band_col":  d.BalanceBands.BandCol,
		"balance_bands.value_col": d.BalanceBands.ValueCol,
		"movement.table":          d.Movement.Table,
		"movement.date_col":       d.Movement.DateCol,
		"movement.price_col":      d.Movement.PriceCol,
		"movement.state_col":      d.Movement.StateCol,
		"explorer.blocks":         d.Explorer.Blocks,
		"explorer.transactions":   d.Explorer.Transactions,
		"explorer.inputs":         d.Explorer.Inputs,
		"explorer.outputs":        d.Explorer.Outputs,
	}
	for key, id := range fixed {
		// 可选的源整体留空即可
		if id == "" && !strings.HasPrefix(key, "price.") {
			continue
		}
		if !ValidIdent(id) {
			return fmt.Errorf("%s: invalid identifier %q", key, id)
		}
	}
	labels := make(map[string]bool)
	for _, b := range d.HodlWaves.Buckets {
		if !ValidIdent(b.Label) {
			return fmt.Errorf("hodl_waves bucket %q: invalid label %q", b.Key, b.Label)
		}
		if labels[b.Label] {
			return fmt.Errorf("hodl_waves bucket label %q repeated", b.Label)
		}
		labels[b.Label] = true
	}
	return nil
}
