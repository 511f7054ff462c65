package model

import (
	"gorm.io/datatypes"
)

// SessionModel 保存一个浏览器会话的洗牌调色板。
type SessionModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Palette       datatypes.JSON `gorm:"column:palette"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (SessionModel) TableName() string { return "sessions" }

// SessionColorModel 是会话内某条序列的颜色；Explicit 表示用户手动选择。
type SessionColorModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	SessionID     string `gorm:"column:session_id;uniqueIndex:idx_session_series"`
	Series        string `gorm:"column:series;uniqueIndex:idx_session_series"`
	Color         string `gorm:"column:color"`
	Explicit      bool   `gorm:"column:explicit"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (SessionColorModel) TableName() string { return "session_colors" }

// DrawingModel 保存绘图组件的数据和用户画的形状。
type DrawingModel struct {
	Key           string         `gorm:"column:draw_key;primaryKey"`
	X             datatypes.JSON `gorm:"column:x"`
	Y             datatypes.JSON `gorm:"column:y"`
	Shapes        datatypes.JSON `gorm:"column:shapes"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (DrawingModel) TableName() string { return "drawings" }
