// Package store 提供引擎的持久化层：
// MySQL 历史/购买日志 (History) 与 Redis 实时快照 (Snapshot)。
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tapmarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// resetDateLayout last_reset 标记的日期格式
const resetDateLayout = "2006-01-02"

// PersistError 历史/购买日志写入失败
// 可恢复错误：调用方记录日志后继续，不中断定价循环
type PersistError struct {
	Op    string // append_history, append_purchase, reset
	Drink string // 空表示与单品无关
	Err   error
}

func (e *PersistError) Error() string {
	if e.Drink == "" {
		return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persist %s [%s]: %v", e.Op, e.Drink, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// History MySQL 历史存储
type History struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHistory 创建历史存储
func NewHistory(db *gorm.DB, log *slog.Logger) *History {
	if log == nil {
		log = slog.Default()
	}
	return &History{db: db, logger: log}
}

// AppendHistory 追加一条价格记录
func (h *History) AppendHistory(ctx context.Context, drinkKey string, price float64, at time.Time) error {
	rec := model.PriceHistory{
		DrinkKey:   drinkKey,
		Price:      price,
		RecordedAt: at,
	}
	if err := h.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return &PersistError{Op: "append_history", Drink: drinkKey, Err: err}
	}
	return nil
}

// AppendPurchase 追加一条模拟购买记录
func (h *History) AppendPurchase(ctx context.Context, drinkKey string, quantity int, price float64, at time.Time) error {
	rec := model.Purchase{
		DrinkKey:   drinkKey,
		Quantity:   quantity,
		Price:      price,
		RecordedAt: at,
	}
	if err := h.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return &PersistError{Op: "append_purchase", Drink: drinkKey, Err: err}
	}
	return nil
}

// ResetDailyState 换日重置：清空历史与购买日志并写入重置标记
// 三个写操作在同一事务内完成，要么全部生效要么全部回滚
func (h *History) ResetDailyState(ctx context.Context, day time.Time) error {
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.PriceHistory{}).Error; err != nil {
			return fmt.Errorf("clear price history: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.Purchase{}).Error; err != nil {
			return fmt.Errorf("clear purchases: %w", err)
		}

		marker := model.EngineMarker{
			Name:  model.MarkerLastReset,
			Value: day.Format(resetDateLayout),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&marker).Error; err != nil {
			return fmt.Errorf("save last reset marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return &PersistError{Op: "reset", Err: err}
	}

	h.logger.Info("daily state reset", slog.String("date", day.Format(resetDateLayout)))
	return nil
}

// LastReset 读取持久化的上次重置日期
// 标记不存在时返回零值和 false (首次启动)
func (h *History) LastReset(ctx context.Context) (time.Time, bool, error) {
	var marker model.EngineMarker
	err := h.db.WithContext(ctx).
		Where("name = ?", model.MarkerLastReset).
		First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load last reset marker: %w", err)
	}

	day, err := time.ParseInLocation(resetDateLayout, marker.Value, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last reset marker %q: %w", marker.Value, err)
	}
	return day, true, nil
}

// ListHistory 按时间升序返回某个酒水的价格序列
// limit <= 0 表示不限制
func (h *History) ListHistory(ctx context.Context, drinkKey string, limit int) ([]model.PriceHistory, error) {
	var rows []model.PriceHistory
	q := h.db.WithContext(ctx).
		Where("drink_key = ?", drinkKey).
		Order("recorded_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return rows, nil
}

// ListPurchases 按时间升序返回某个酒水的购买记录
func (h *History) ListPurchases(ctx context.Context, drinkKey string, limit int) ([]model.Purchase, error) {
	var rows []model.Purchase
	q := h.db.WithContext(ctx).
		Where("drink_key = ?", drinkKey).
		Order("recorded_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return rows, nil
}

// AllHistory 返回当日全部价格记录（导出用），按酒水、时间排序
func (h *History) AllHistory(ctx context.Context) ([]model.PriceHistory, error) {
	var rows []model.PriceHistory
	err := h.db.WithContext(ctx).
		Order("drink_key ASC, recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("all history: %w", err)
	}
	return rows, nil
}

// LatestPrices 返回每个酒水最近一条价格记录
// 快照缓存不可用时 dashboard 的回退数据源
func (h *History) LatestPrices(ctx context.Context) (map[string]model.PriceHistory, error) {
	var rows []model.PriceHistory
	err := h.db.WithContext(ctx).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}

	latest := make(map[string]model.PriceHistory, 16)
	for _, r := range rows {
		latest[r.DrinkKey] = r
	}
	return latest, nil
}

// ListDrinks 返回在售酒水目录
func (h *History) ListDrinks(ctx context.Context) ([]model.Drink, error) {
	var drinks []model.Drink
	err := h.db.WithContext(ctx).
		Where("status = ?", model.DrinkStatusActive).
		Order("`key` ASC").
		Find(&drinks).Error
	if err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}
	return drinks, nil
}
