// Package drawing 持久化绘图组件上用户画出的形状。
package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidPayload 表示 relayout 数据无法解析。
var ErrInvalidPayload = errors.New("invalid draw payload")

// Line 是形状的描边样式。
type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

// Shape 对应前端 layout.shapes 中的一个元素。坐标可能是数字或日期字符串。
type Shape struct {
	Type      string         `json:"type"`
	XRef      string         `json:"xref,omitempty"`
	YRef      string         `json:"yref,omitempty"`
	X0        any            `json:"x0,omitempty"`
	Y0        any            `json:"y0,omitempty"`
	X1        any            `json:"x1,omitempty"`
	Y1        any            `json:"y1,omitempty"`
	Path      string         `json:"path,omitempty"`
	Line      *Line          `json:"line,omitempty"`
	FillColor string         `json:"fillcolor,omitempty"`
	Opacity   float64        `json:"opacity,omitempty"`
	Extra     map[string]any `json:"-"`
}

var knownShapeKeys = map[string]struct{}{
	"type": {}, "xref": {}, "yref": {}, "x0": {}, "y0": {}, "x1": {}, "y1": {},
	"path": {}, "line": {}, "fillcolor": {}, "opacity": {},
}

func (s Shape) MarshalJSON() ([]byte, error) {
	type plain Shape
	base, err := json.Marshal(plain(s))
	if err != nil || len(s.Extra) == 0 {
		return base, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, ok := knownShapeKeys[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (s *Shape) UnmarshalJSON(b []byte) error {
	type plain Shape
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k := range knownShapeKeys {
		delete(all, k)
	}
	*s = Shape(p)
	if len(all) > 0 {
		s.Extra = all
	}
	return nil
}

// Update 是一次 relayout 解析的结果。Changed 为 false 时说明载荷与形状无关（缩放、平移等）。
type Update struct {
	Shapes  []Shape
	Changed bool
}

var flatKey = regexp.MustCompile(`^shapes\[(\d+)\](?:\.(.+))?$`)

// Apply 把 relayout 载荷合并到 current 上。
// 载荷形如 {"shapes":[...]} 时整体替换；形如 {"shapes[0].x0": 1} 时按下标局部更新。
func Apply(current []Shape, payload []byte) (Update, error) {
	if !gjson.ValidBytes(payload) {
		return Update{}, fmt.Errorf("%w: not json", ErrInvalidPayload)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return Update{}, fmt.Errorf("%w: expect object", ErrInvalidPayload)
	}
	if all := root.Get("shapes"); all.Exists() {
		if !all.IsArray() {
			return Update{}, fmt.Errorf("%w: shapes must be an array", ErrInvalidPayload)
		}
		var shapes []Shape
		if err := json.Unmarshal([]byte(all.Raw), &shapes); err != nil {
			return Update{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if shapes == nil {
			shapes = []Shape{}
		}
		return Update{Shapes: shapes, Changed: true}, nil
	}

	maps := make([]map[string]any, len(current))
	for i, s := range current {
		m, err := toMap(s)
		if err != nil {
			return Update{}, err
		}
		maps[i] = m
	}
	removed := map[int]bool{}
	changed := false
	var walkErr error
	root.ForEach(func(key, value gjson.Result) bool {
		m := flatKey.FindStringSubmatch(key.String())
		if m == nil {
			return true
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			walkErr = fmt.Errorf("%w: %s", ErrInvalidPayload, key.String())
			return false
		}
		// 只允许修改已有图形或追加下一个
		if idx > len(current) {
			walkErr = fmt.Errorf("%w: %s index out of range", ErrInvalidPayload, key.String())
			return false
		}
		if idx == len(maps) {
			maps = append(maps, map[string]any{})
		}
		changed = true
		if m[2] == "" {
			if value.Type == gjson.Null {
				removed[idx] = true
				return true
			}
			obj, ok := value.Value().(map[string]any)
			if !ok {
				walkErr = fmt.Errorf("%w: %s must be an object", ErrInvalidPayload, key.String())
				return false
			}
			maps[idx] = obj
			delete(removed, idx)
			return true
		}
		setPath(maps[idx], strings.Split(m[2], "."), value.Value())
		return true
	})
	if walkErr != nil {
		return Update{}, walkErr
	}
	if !changed {
		return Update{Shapes: current}, nil
	}
	out := make([]Shape, 0, len(maps))
	for i, m := range maps {
		if removed[i] {
			continue
		}
		s, err := fromMap(m)
		if err != nil {
			return Update{}, err
		}
		out = append(out, s)
	}
	return Update{Shapes: out, Changed: true}, nil
}

func setPath(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func toMap(s Shape) (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	return m, json.Unmarshal(b, &m)
}

func fromMap(m map[string]any) (Shape, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return Shape{}, err
	}
	var s Shape
	if err := json.Unmarshal(b, &s); err != nil {
		return Shape{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s, nil
}

// Encode 把形状序列化成稳定的 JSON 数组。
func Encode(shapes []Shape) (json.RawMessage, error) {
	if shapes == nil {
		shapes = []Shape{}
	}
	return json.Marshal(shapes)
}

// Decode 是 Encode 的逆过程；空输入返回空切片。
func Decode(raw json.RawMessage) ([]Shape, error) {
	if len(raw) == 0 {
		return []Shape{}, nil
	}
	var shapes []Shape
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return nil, err
	}
	if shapes == nil {
		shapes = []Shape{}
	}
	return shapes, nil
}
