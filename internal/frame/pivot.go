package frame

import (
	"sort"
	"time"
)

// LongRow 是长表中的一行 (日期, 分类, 值)。
type LongRow struct {
	Date  time.Time
	Key   string
	Value float64
}

// Pivot 把长表转成宽表：每个 Key 一列。order 中的 key 排在前面，
// 其余 key 按字母序追加；缺失单元格填 fill。同一 (日期, key) 保留最后的值。
func Pivot(rows []LongRow, order []string, fill float64) *Frame {
	dates := make([]time.Time, 0, len(rows))
	keys := make(map[string]bool)
	for _, r := range rows {
		dates = append(dates, r.Date)
		keys[r.Key] = true
	}
	f := New(dates)
	pos := make(map[time.Time]int, len(f.Index))
	for i, t := range f.Index {
		pos[t] = i
	}
	var names []string
	seen := make(map[string]bool)
	for _, k := range order {
		if keys[k] && !seen[k] {
			names = append(names, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range keys {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	cols := make(map[string][]float64, len(names))
	for _, n := range names {
		col := make([]float64, len(f.Index))
		for i := range col {
			col[i] = fill
		}
		cols[n] = col
	}
	for _, r := range rows {
		cols[r.Key][pos[Day(r.Date)]] = r.Value
	}
	for _, n := range names {
		_ = f.Set(n, cols[n])
	}
	return f
}
