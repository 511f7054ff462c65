// Package palette 为每个浏览器会话分配稳定的序列颜色。
package palette

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"onchainvitals/internal/logger"
	"onchainvitals/internal/store/gormstore"
)

// Default 是新会话洗牌前的十色调色板。
var Default = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ErrInvalidColor 表示颜色不是 #RRGGBB。
var ErrInvalidColor = errors.New("invalid color")

// ValidColor 校验 #RRGGBB 格式。
func ValidColor(c string) bool { return hexColor.MatchString(c) }

// Store 是 Manager 依赖的持久化接口，由 gormstore.GormStore 实现。
type Store interface {
	LoadSession(ctx context.Context, id string) (gormstore.Session, bool, error)
	CreateSession(ctx context.Context, id string, palette []string) (gormstore.Session, error)
	SaveColors(ctx context.Context, sessionID string, assignments []gormstore.ColorAssignment) error
}

// Manager 管理会话颜色。同一会话的分配串行执行。
type Manager struct {
	store   Store
	shuffle func([]string)

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		shuffle: func(p []string) {
			rand.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		},
		locks: make(map[string]*sessionLock),
	}
}

// lock 串行化同一会话的操作；没有持有者时条目被删除。
func (m *Manager) lock(id string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Colors 返回每个序列的颜色：已有的保持不变，新序列取 palette[i%10]，
// i 为序列在 series 中的位置。
func (m *Manager) Colors(ctx context.Context, sessionID string, series []string) (map[string]string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Assign(Default, nil, series), nil
	}
	defer m.lock(sessionID)()

	sess, err := m.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := Assign(sess.Palette, sess.Colors, series)
	var fresh []gormstore.ColorAssignment
	for _, s := range series {
		if _, ok := sess.Colors[s]; !ok {
			fresh = append(fresh, gormstore.ColorAssignment{Series: s, Color: out[s]})
		}
	}
	if err := m.store.SaveColors(ctx, sessionID, fresh); err != nil {
		return nil, fmt.Errorf("save colors for session %s: %w", sessionID, err)
	}
	return out, nil
}

// Set 保存用户手选的颜色，覆盖自动分配。
func (m *Manager) Set(ctx context.Context, sessionID string, picks map[string]string) (map[string]string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidColor)
	}
	assignments := make([]gormstore.ColorAssignment, 0, len(picks))
	for series, c := range picks {
		if !ValidColor(c) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidColor, series, c)
		}
		assignments = append(assignments, gormstore.ColorAssignment{Series: series, Color: strings.ToLower(c), Explicit: true})
	}
	defer m.lock(sessionID)()
	if _, err := m.session(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := m.store.SaveColors(ctx, sessionID, assignments); err != nil {
		return nil, err
	}
	sess, _, err := m.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	logger.Debugf("palette: session %s set %d colors", sessionID, len(assignments))
	return sess.Colors, nil
}

// Session 返回会话当前的颜色表，会话不存在时创建。
func (m *Manager) Session(ctx context.Context, sessionID string) (gormstore.Session, error) {
	defer m.lock(sessionID)()
	return m.session(ctx, sessionID)
}

func (m *Manager) session(ctx context.Context, id string) (gormstore.Session, error) {
	sess, ok, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return gormstore.Session{}, err
	}
	if ok && len(sess.Palette) > 0 {
		return sess, nil
	}
	p := append([]string(nil), Default...)
	m.shuffle(p)
	sess, err = m.store.CreateSession(ctx, id, p)
	if err != nil {
		return gormstore.Session{}, err
	}
	logger.Infof("palette: 新会话 %s", id)
	return sess, nil
}

// Assign 给 series 分配颜色；existing 中已有的保持不变。
func Assign(palette []string, existing map[string]string, series []string) map[string]string {
	if len(palette) == 0 {
		palette = Default
	}
	out := make(map[string]string, len(series))
	for i, s := range series {
		if c, ok := existing[s]; ok {
			out[s] = c
			continue
		}
		out[s] = palette[i%len(palette)]
	}
	return out
}
