package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "onchainvitals/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type sessionModel = storemodel.SessionModel
type sessionColorModel = storemodel.SessionColorModel
type drawingModel = storemodel.DrawingModel

// MemoryPath 让 NewGormStore 打开一个私有的内存库。
const MemoryPath = ":memory:"

// Session 是会话调色板与已分配颜色。
type Session struct {
	ID       string
	Palette  []string
	Colors   map[string]string
	Explicit map[string]bool
}

// ColorAssignment 是一次颜色写入。
type ColorAssignment struct {
	Series   string
	Color    string
	Explicit bool
}

// Drawing 是绘图组件的持久化状态。Shapes 为规范化后的 JSON 数组。
type Drawing struct {
	Key       string
	X         []any
	Y         []any
	Shapes    json.RawMessage
	UpdatedAt time.Time
}

// GormStore 用 Gorm + SQLite 保存会话颜色和绘图。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 存储路径不能为空")
	}
	var dsn string
	if path == MemoryPath {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sessionModel{}, &sessionColorModel{}, &drawingModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查底层连接。
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --------------------- Sessions -------------------------

// LoadSession 读取会话；不存在时 ok 为 false。
func (s *GormStore) LoadSession(ctx context.Context, id string) (Session, bool, error) {
	var m sessionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	sess := Session{ID: m.ID, Colors: map[string]string{}, Explicit: map[string]bool{}}
	if len(m.Palette) > 0 {
		if err := json.Unmarshal(m.Palette, &sess.Palette); err != nil {
			return Session{}, false, fmt.Errorf("decode palette for session %s: %w", id, err)
		}
	}
	var colors []sessionColorModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Find(&colors).Error; err != nil {
		return Session{}, false, err
	}
	for _, c := range colors {
		sess.Colors[c.Series] = c.Color
		sess.Explicit[c.Series] = c.Explicit
	}
	return sess, true, nil
}

// CreateSession 新建会话；id 为空时生成 uuid。
func (s *GormStore) CreateSession(ctx context.Context, id string, palette []string) (Session, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(palette)
	if err != nil {
		return Session{}, err
	}
	now := time.Now().Unix()
	m := sessionModel{ID: id, Palette: datatypes.JSON(raw), CreatedAtUnix: now, UpdatedAtUnix: now}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return Session{}, err
	}
	sess, _, err := s.LoadSession(ctx, id)
	return sess, err
}

// SaveColors upsert 颜色分配；非 explicit 的写入不会覆盖用户手选的颜色。
func (s *GormStore) SaveColors(ctx context.Context, sessionID string, assignments []ColorAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range assignments {
			m := sessionColorModel{
				SessionID:     sessionID,
				Series:        a.Series,
				Color:         a.Color,
				Explicit:      a.Explicit,
				UpdatedAtUnix: now,
			}
			conflict := clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "series"}},
				DoUpdates: clause.AssignmentColumns([]string{"color", "explicit", "updated_at"}),
			}
			if !a.Explicit {
				conflict = clause.OnConflict{
					Columns: []clause.Column{{Name: "session_id"}, {Name: "series"}},
					DoNothing: true,
				}
			}
			if err := tx.Clauses(conflict).Create(&m).Error; err != nil {
				return err
			}
		}
		return tx.Model(&sessionModel{}).Where("id = ?", sessionID).Update("updated_at", now).Error
	})
}

// --------------------- Drawings -------------------------

func (s *GormStore) LoadDrawing(ctx context.Context, key string) (Drawing, bool, error) {
	var m drawingModel
	err := s.db.WithContext(ctx).Where("draw_key = ?", key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Drawing{Key: key}, false, nil
	}
	if err != nil {
		return Drawing{}, false, err
	}
	d := Drawing{Key: m.Key, Shapes: json.RawMessage(m.Shapes), UpdatedAt: time.Unix(m.UpdatedAtUnix, 0)}
	if len(m.X) > 0 {
		if err := json.Unmarshal(m.X, &d.X); err != nil {
			return Drawing{}, false, err
		}
	}
	if len(m.Y) > 0 {
		if err := json.Unmarshal(m.Y, &d.Y); err != nil {
			return Drawing{}, false, err
		}
	}
	return d, true, nil
}

// SaveDrawingData 写入 x/y，保留已有形状。
func (s *GormStore) SaveDrawingData(ctx context.Context, key string, x, y []any) error {
	xs, err := json.Marshal(x)
	if err != nil {
		return err
	}
	ys, err := json.Marshal(y)
	if err != nil {
		return err
	}
	m := drawingModel{Key: key, X: datatypes.JSON(xs), Y: datatypes.JSON(ys), Shapes: datatypes.JSON("[]"), UpdatedAtUnix: time.Now().Unix()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "draw_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"x", "y", "updated_at"}),
	}).Create(&m).Error
}

// SaveShapes 覆盖形状，保留已有 x/y。
func (s *GormStore) SaveShapes(ctx context.Context, key string, shapes json.RawMessage) error {
	if len(shapes) == 0 {
		shapes = json.RawMessage("[]")
	}
	m := drawingModel{Key: key, X: datatypes.JSON("[]"), Y: datatypes.JSON("[]"), Shapes: datatypes.JSON(shapes), UpdatedAtUnix: time.Now().Unix()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "draw_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"shapes", "updated_at"}),
	}).Create(&m).Error
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
