package drawing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"onchainvitals/internal/logger"
	"onchainvitals/internal/store/gormstore"
)

// ErrInvalidKey 表示组件 key 不合法。
var ErrInvalidKey = errors.New("invalid draw key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidKey 校验组件 key。
func ValidKey(key string) bool { return keyPattern.MatchString(key) }

// Store 由 gormstore.GormStore 实现。
type Store interface {
	LoadDrawing(ctx context.Context, key string) (gormstore.Drawing, bool, error)
	SaveDrawingData(ctx context.Context, key string, x, y []any) error
	SaveShapes(ctx context.Context, key string, shapes json.RawMessage) error
}

// State 是一个组件实例的完整状态。
type State struct {
	Key       string    `json:"key"`
	X         []any     `json:"x"`
	Y         []any     `json:"y"`
	Shapes    []Shape   `json:"shapes"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Service 串行化同一 key 的读改写。
type Service struct {
	store Store
	mu    sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Load(ctx context.Context, key string) (State, error) {
	if !ValidKey(key) {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	d, _, err := s.store.LoadDrawing(ctx, key)
	if err != nil {
		return State{}, err
	}
	shapes, err := Decode(d.Shapes)
	if err != nil {
		return State{}, fmt.Errorf("decode shapes for %s: %w", key, err)
	}
	st := State{Key: key, X: d.X, Y: d.Y, Shapes: shapes, UpdatedAt: d.UpdatedAt}
	if st.X == nil {
		st.X = []any{}
	}
	if st.Y == nil {
		st.Y = []any{}
	}
	return st, nil
}

// SetData 设置前端要画的 x/y 数组。
func (s *Service) SetData(ctx context.Context, key string, x, y []any) (State, error) {
	if !ValidKey(key) {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(x) != len(y) {
		return State{}, fmt.Errorf("%w: x has %d values, y has %d", ErrInvalidPayload, len(x), len(y))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveDrawingData(ctx, key, x, y); err != nil {
		return State{}, err
	}
	return s.Load(ctx, key)
}

// Relayout 合并前端发回的 relayout 载荷并持久化。
func (s *Service) Relayout(ctx context.Context, key string, payload []byte) (State, error) {
	if !ValidKey(key) {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.Load(ctx, key)
	if err != nil {
		return State{}, err
	}
	upd, err := Apply(st.Shapes, payload)
	if err != nil {
		return State{}, err
	}
	if !upd.Changed {
		return st, nil
	}
	raw, err := Encode(upd.Shapes)
	if err != nil {
		return State{}, err
	}
	if err := s.store.SaveShapes(ctx, key, raw); err != nil {
		return State{}, err
	}
	logger.Debugf("drawing: %s 保存 %d 个形状", strings.TrimSpace(key), len(upd.Shapes))
	return s.Load(ctx, key)
}
