package frame

import (
	"encoding/csv"
	"io"
	"math"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// WriteCSV 写出 CSV，首列为 dateHeader，NaN 写成空串。
func (f *Frame) WriteCSV(w io.Writer, dateHeader string) error {
	cw := csv.NewWriter(w)
	header := append([]string{dateHeader}, f.names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, t := range f.Index {
		row[0] = t.Format(DateLayout)
		for j, n := range f.names {
			row[j+1] = formatValue(f.cols[n][i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}

// Records 返回逐行 map，NaN 为 nil，供 JSON 输出。
func (f *Frame) Records(dateKey string) []map[string]any {
	out := make([]map[string]any, 0, len(f.Index))
	for i, t := range f.Index {
		rec := make(map[string]any, len(f.names)+1)
		rec[dateKey] = t.Format(DateLayout)
		for _, n := range f.names {
			rec[n] = nullable(f.cols[n][i])
		}
		out = append(out, rec)
	}
	return out
}

// Columnar 是 frame 的列式 JSON 形态。
type Columnar struct {
	Dates   []string              `json:"dates"`
	Columns []string              `json:"columns"`
	Series  map[string][]*float64 `json:"series"`
}

func (f *Frame) Columnar() Columnar {
	out := Columnar{
		Dates:   make([]string, len(f.Index)),
		Columns: f.Columns(),
		Series:  make(map[string][]*float64, len(f.names)),
	}
	for i, t := range f.Index {
		out.Dates[i] = t.Format(DateLayout)
	}
	for _, n := range f.names {
		vals := make([]*float64, len(f.Index))
		for i, v := range f.cols[n] {
			v := v
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			vals[i] = &v
		}
		out.Series[n] = vals
	}
	return out
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
