package warehouse

import (
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/catalog"
)

// DateAlias 是所有时间序列查询返回的日期列名。
const DateAlias = "OBS_DATE"

const dateLayout = "2006-01-02"

// Query 是一条带绑定参数的 SQL。Name 用于日志和指标标签。
type Query struct {
	Name string
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d Dialect) *builder { return &builder{d: d} }

func (b *builder) write(parts ...string) *builder {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
	return b
}

// bind 追加一个参数并返回占位符。
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) query(name string) Query {
	return Query{Name: name, SQL: b.sb.String(), Args: b.args}
}

// dateRange 追加 [start, end] 条件，零值表示不限。
func (b *builder) dateRange(dateExpr string, start, end time.Time, first bool) {
	kw := " AND "
	if first {
		kw = " WHERE "
	}
	if !start.IsZero() {
		b.write(kw, dateExpr, " >= ", b.bind(start.Format(dateLayout)))
		kw = " AND "
	}
	if !end.IsZero() {
		b.write(kw, dateExpr, " <= ", b.bind(end.Format(dateLayout)))
	}
}

func checkIdents(ids ...string) error {
	for _, id := range ids {
		if !catalog.ValidIdent(id) {
			return fmt.Errorf("invalid identifier %q", id)
		}
	}
	return nil
}

// SeriesQuery 选取日期列与指定数值列；metric 设置了 aggregate 时按日聚合。
func SeriesQuery(d Dialect, m catalog.Metric, cols []string, start, end time.Time) (Query, error) {
	if len(cols) == 0 {
		return Query{}, fmt.Errorf("series query for %s requires columns", m.Name)
	}
	if err := checkIdents(append([]string{m.Table, m.DateCol}, cols...)...); err != nil {
		return Query{}, err
	}
	dateExpr := d.Date(d.Column(m.DateCol))
	b := newBuilder(d)
	b.write("SELECT ", dateExpr, " AS ", DateAlias)
	for _, c := range cols {
		col := d.Column(c)
		if m.Aggregate != catalog.AggregateNone {
			col = strings.ToUpper(string(m.Aggregate)) + "(" + col + ")"
		}
		b.write(", ", col, " AS ", quote(c))
	}
	b.write(" FROM ", d.Table(m.Table))
	b.dateRange(dateExpr, start, end, true)
	if m.Aggregate != catalog.AggregateNone {
		b.write(" GROUP BY ", dateExpr)
	}
	b.write(" ORDER BY 1")
	return b.query("series:" + m.Name), nil
}

// PriceQuery 读取非空 BTC 价格。
func PriceQuery(d Dialect, p catalog.PriceSource, start, end time.Time) (Query, error) {
	if err := checkIdents(p.Table, p.DateCol, p.ValueCol); err != nil {
		return Query{}, err
	}
	dateExpr := d.Date(d.Column(p.DateCol))
	b := newBuilder(d)
	b.write("SELECT ", dateExpr, " AS ", DateAlias, ", ", d.Column(p.ValueCol), " AS ", quote(p.ValueCol),
		" FROM ", d.Table(p.Table), " WHERE ", d.Column(p.ValueCol), " IS NOT NULL")
	b.dateRange(dateExpr, start, end, false)
	b.write(" ORDER BY 1")
	return b.query("price"), nil
}

// HodlWavesQuery 返回长表 (日期, 年龄桶, 占比)。
func HodlWavesQuery(d Dialect, h catalog.HodlWavesSource, start time.Time) (Query, error) {
	if err := checkIdents(h.Table, h.DateCol, h.BucketCol, h.ValueCol); err != nil {
		return Query{}, err
	}
	dateExpr := d.Date(d.Column(h.DateCol))
	b := newBuilder(d)
	b.write("SELECT ", dateExpr, " AS ", DateAlias, ", ", d.Column(h.BucketCol), " AS BUCKET, ",
		d.Column(h.ValueCol), " AS VAL FROM ", d.Table(h.Table))
	b.dateRange(dateExpr, start, time.Time{}, true)
	b.write(" ORDER BY 1")
	return b.query("hodl_waves"), nil
}

// BandListQuery 列出去重后的余额分档。
func BandListQuery(d Dialect, s catalog.BalanceBandsSource) (Query, error) {
	if err := checkIdents(s.Table, s.BandCol); err != nil {
		return Query{}, err
	}
	b := newBuilder(d)
	b.write("SELECT DISTINCT ", d.Column(s.BandCol), " AS BAND FROM ", d.Table(s.Table), " ORDER BY 1")
	return b.query("balance_bands:list"), nil
}

// BandRowsQuery 读取选中分档的 (日期, 分档, 地址数)。
func BandRowsQuery(d Dialect, s catalog.BalanceBandsSource, bands []string, start, end time.Time) (Query, error) {
	if len(bands) == 0 {
		return Query{}, fmt.Errorf("balance band query requires at least one band")
	}
	if err := checkIdents(s.Table, s.DateCol, s.BandCol, s.ValueCol); err != nil {
		return Query{}, err
	}
	dateExpr := d.Date(d.Column(s.DateCol))
	b := newBuilder(d)
	b.write("SELECT ", dateExpr, " AS ", DateAlias, ", ", d.Column(s.BandCol), " AS BUCKET, ",
		d.Column(s.ValueCol), " AS VAL FROM ", d.Table(s.Table), " WHERE ", d.Column(s.BandCol), " IN (")
	for i, band := range bands {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.bind(band))
	}
	b.write(")")
	b.dateRange(dateExpr, start, end, false)
	b.write(" ORDER BY 1")
	return b.query("balance_bands:rows"), nil
}

// MovementQuery 读取周度均价与运动状态。
func MovementQuery(d Dialect, s catalog.MovementSource, start, end time.Time) (Query, error) {
	if err := checkIdents(s.Table, s.DateCol, s.PriceCol, s.StateCol); err != nil {
		return Query{}, err
	}
	dateExpr := d.Date(d.Column(s.DateCol))
	b := newBuilder(d)
	b.write("SELECT ", dateExpr, " AS ", DateAlias, ", ", d.Column(s.PriceCol), " AS AVG_PRICE, ",
		d.Column(s.StateCol), " AS STATE FROM ", d.Table(s.Table), " WHERE ", d.Column(s.PriceCol), " IS NOT NULL")
	b.dateRange(dateExpr, start, end, false)
	b.write(" ORDER BY 1")
	return b.query("movement"), nil
}
