package model

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================================
// Drink - 酒水目录
// ============================================================================

// DrinkStatus 酒水在售状态
type DrinkStatus string

const (
	DrinkStatusActive DrinkStatus = "active"
	DrinkStatusPaused DrinkStatus = "paused"
)

// Drink 酒水目录条目
// 目录由外部 POS 平台拥有，引擎只读写价格，从不创建条目
type Drink struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Key         string         `gorm:"type:varchar(64);uniqueIndex:uk_key;not null" json:"key"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	VariationID string         `gorm:"column:variation_id;type:varchar(64);not null" json:"variation_id"`
	Status      DrinkStatus    `gorm:"type:varchar(20);not null;default:'active';index:idx_drink_status" json:"status"`
	CreatedAt   time.Time      `gorm:"type:datetime(3);not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"type:datetime(3);not null;autoUpdateTime:milli" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Drink) TableName() string {
	return "drinks"
}

// ============================================================================
// PriceHistory - 价格时间序列
// ============================================================================

// PriceHistory 单次定价结果
// 交易日内只追加，换日重置时整表清空
type PriceHistory struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DrinkKey   string    `gorm:"type:varchar(64);not null;index:idx_history_drink_time,priority:1" json:"drink_key"`
	Price      float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	RecordedAt time.Time `gorm:"type:datetime(3);not null;index:idx_history_drink_time,priority:2" json:"recorded_at"`
}

// TableName 指定表名
func (PriceHistory) TableName() string {
	return "price_history"
}

// ============================================================================
// Purchase - 模拟购买记录
// ============================================================================

// Purchase 模拟购买事件记录
type Purchase struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DrinkKey   string    `gorm:"type:varchar(64);not null;index:idx_purchase_drink_time,priority:1" json:"drink_key"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	Price      float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	RecordedAt time.Time `gorm:"type:datetime(3);not null;index:idx_purchase_drink_time,priority:2" json:"recorded_at"`
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchases"
}

// ============================================================================
// EngineMarker - 引擎持久化标记
// ============================================================================

// MarkerLastReset 上次换日重置日期的标记名
const MarkerLastReset = "last_reset"

// EngineMarker 引擎跨重启持久化的键值标记
// 目前只存 last_reset (YYYY-MM-DD)，与历史日志同库同事务写入
type EngineMarker struct {
	Name      string    `gorm:"type:varchar(32);primaryKey" json:"name"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 指定表名
func (EngineMarker) TableName() string {
	return "engine_markers"
}
