// Package frame implements a small date-indexed table of float64 columns.
// Missing values are NaN. The index is kept sorted ascending and unique.
package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Join 指定合并方式。
type Join int

const (
	Outer Join = iota
	Inner
)

// ParseJoin 解析 "inner"/"outer"，空串默认 outer。
func ParseJoin(s string) (Join, error) {
	switch s {
	case "", "outer":
		return Outer, nil
	case "inner":
		return Inner, nil
	default:
		return Outer, fmt.Errorf("unknown join %q", s)
	}
}

// How 控制 DropNA 的判定。
type How int

const (
	// Any 删除任意列为 NaN 的行。
	Any How = iota
	// All 只删除全部列都是 NaN 的行。
	All
)

var ErrDuplicateColumn = errors.New("frame: duplicate column")

// Frame 是以日期为索引的列式表。
type Frame struct {
	Index []time.Time
	names []string
	cols  map[string][]float64
}

// Day 把时间归一到 UTC 零点。
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// New 创建空列的 frame；index 会被排序去重。
func New(index []time.Time) *Frame {
	idx := make([]time.Time, 0, len(index))
	for _, t := range index {
		idx = append(idx, Day(t))
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].Before(idx[j]) })
	out := idx[:0]
	for i, t := range idx {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return &Frame{Index: out, cols: make(map[string][]float64)}
}

// FromSeries 由 (日期, 值) 构建单列 frame，重复日期保留最后出现的值。
func FromSeries(name string, dates []time.Time, values []float64) (*Frame, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("frame: %d dates but %d values", len(dates), len(values))
	}
	return FromColumns(dates, map[string][]float64{name: values}, []string{name})
}

// FromColumns 由原始行构建多列 frame，列顺序由 order 决定；重复日期保留最后一行。
func FromColumns(dates []time.Time, cols map[string][]float64, order []string) (*Frame, error) {
	f := New(dates)
	pos := make(map[time.Time]int, len(f.Index))
	for i, t := range f.Index {
		pos[t] = i
	}
	for _, name := range order {
		src, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("frame: column %q missing", name)
		}
		if len(src) != len(dates) {
			return nil, fmt.Errorf("frame: column %q has %d values for %d dates", name, len(src), len(dates))
		}
		dst := nanSlice(len(f.Index))
		for i, t := range dates {
			dst[pos[Day(t)]] = src[i]
		}
		if err := f.Set(name, dst); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func (f *Frame) Len() int { return len(f.Index) }

// Empty reports whether the frame has no rows or no columns.
func (f *Frame) Empty() bool { return f == nil || len(f.Index) == 0 || len(f.names) == 0 }

// Columns 返回列名（插入顺序）。
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// Set 新增或替换一列。
func (f *Frame) Set(name string, vals []float64) error {
	if len(vals) != len(f.Index) {
		return fmt.Errorf("frame: column %q has %d values, index has %d", name, len(vals), len(f.Index))
	}
	if f.cols == nil {
		f.cols = make(map[string][]float64)
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = vals
	return nil
}

// Drop 删除列，不存在时忽略。
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i], f.names[i+1:]...)
			break
		}
	}
}

// Rename 重命名列，保持顺序。
func (f *Frame) Rename(from, to string) error {
	col, ok := f.cols[from]
	if !ok {
		return fmt.Errorf("frame: column %q missing", from)
	}
	if from == to {
		return nil
	}
	if _, exists := f.cols[to]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, to)
	}
	delete(f.cols, from)
	f.cols[to] = col
	for i, n := range f.names {
		if n == from {
			f.names[i] = to
		}
	}
	return nil
}

// Clone 深拷贝。
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Index: append([]time.Time(nil), f.Index...),
		names: append([]string(nil), f.names...),
		cols:  make(map[string][]float64, len(f.cols)),
	}
	for k, v := range f.cols {
		out.cols[k] = append([]float64(nil), v...)
	}
	return out
}

// Select 返回只含指定列的新 frame。
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{Index: append([]time.Time(nil), f.Index...), cols: make(map[string][]float64, len(names))}
	for _, n := range names {
		col, ok := f.cols[n]
		if !ok {
			return nil, fmt.Errorf("frame: column %q missing", n)
		}
		if err := out.Set(n, append([]float64(nil), col...)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Merge 按日期合并两个 frame，结果按日期升序。列名冲突时返回 ErrDuplicateColumn。
func (f *Frame) Merge(o *Frame, how Join) (*Frame, error) {
	for _, n := range o.names {
		if _, dup := f.cols[n]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, n)
		}
	}
	var index []time.Time
	var left, right []int
	i, j := 0, 0
	for i < len(f.Index) || j < len(o.Index) {
		switch {
		case j >= len(o.Index) || (i < len(f.Index) && f.Index[i].Before(o.Index[j])):
			if how == Outer {
				index = append(index, f.Index[i])
				left = append(left, i)
				right = append(right, -1)
			}
			i++
		case i >= len(f.Index) || o.Index[j].Before(f.Index[i]):
			if how == Outer {
				index = append(index, o.Index[j])
				left = append(left, -1)
				right = append(right, j)
			}
			j++
		default:
			index = append(index, f.Index[i])
			left = append(left, i)
			right = append(right, j)
			i++
			j++
		}
	}
	out := &Frame{Index: index, cols: make(map[string][]float64, len(f.names)+len(o.names))}
	take := func(src []float64, pick []int) []float64 {
		dst := make([]float64, len(pick))
		for k, p := range pick {
			if p < 0 {
				dst[k] = math.NaN()
			} else {
				dst[k] = src[p]
			}
		}
		return dst
	}
	for _, n := range f.names {
		out.names = append(out.names, n)
		out.cols[n] = take(f.cols[n], left)
	}
	for _, n := range o.names {
		out.names = append(out.names, n)
		out.cols[n] = take(o.cols[n], right)
	}
	return out, nil
}

// MergeAll 依次合并多个 frame。
func MergeAll(how Join, frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return New(nil), nil
	}
	acc := frames[0]
	for _, next := range frames[1:] {
		merged, err := acc.Merge(next, how)
		if err != nil {
			return nil, err
		}
		acc = merged
	}
	return acc, nil
}

// DropNA 删除含 NaN 的行（Any）或全 NaN 的行（All）。无列时返回空 frame。
func (f *Frame) DropNA(how How) *Frame {
	return f.filterRows(func(i int) bool {
		if len(f.names) == 0 {
			return false
		}
		nan := 0
		for _, n := range f.names {
			if math.IsNaN(f.cols[n][i]) {
				nan++
			}
		}
		if how == All {
			return nan < len(f.names)
		}
		return nan == 0
	})
}

// Between 保留 [start, end] 内的行；零值表示不设边界。
func (f *Frame) Between(start, end time.Time) *Frame {
	start, end = dayOrZero(start), dayOrZero(end)
	return f.filterRows(func(i int) bool {
		t := f.Index[i]
		if !start.IsZero() && t.Before(start) {
			return false
		}
		if !end.IsZero() && t.After(end) {
			return false
		}
		return true
	})
}

// Before 保留严格早于 t 的行。
func (f *Frame) Before(t time.Time) *Frame {
	t = Day(t)
	return f.filterRows(func(i int) bool { return f.Index[i].Before(t) })
}

func dayOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return Day(t)
}

func (f *Frame) filterRows(keep func(i int) bool) *Frame {
	out := &Frame{names: append([]string(nil), f.names...), cols: make(map[string][]float64, len(f.names))}
	var rows []int
	for i := range f.Index {
		if keep(i) {
			rows = append(rows, i)
			out.Index = append(out.Index, f.Index[i])
		}
	}
	for _, n := range f.names {
		src := f.cols[n]
		dst := make([]float64, len(rows))
		for k, r := range rows {
			dst[k] = src[r]
		}
		out.cols[n] = dst
	}
	return out
}
