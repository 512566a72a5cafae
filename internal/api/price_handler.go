// internal/api/price_handler.go
// 价格/目录/历史查询 API
package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PriceEntry 单个酒水的实时价格
type PriceEntry struct {
	Drink     string  `json:"drink"`
	Price     float64 `json:"price"`
	Mean      float64 `json:"mean,omitempty"`
	UpdatedAt string  `json:"updated_at"`
	FromCache bool    `json:"from_cache"`
}

// listPrices 获取全部酒水的实时价格
// GET /api/v1/prices
// 优先读 Redis 快照，缓存不可用时回退到最近一条历史记录
func (s *Server) listPrices(c *gin.Context) {
	ctx := c.Request.Context()

	drinks, err := s.history.ListDrinks(ctx)
	if err != nil {
		internalError(c, "failed to list drinks")
		return
	}

	keys := make([]string, len(drinks))
	for i, d := range drinks {
		keys[i] = d.Key
	}

	// 1. 尝试从快照缓存读取
	if s.snapshots != nil {
		snaps, err := s.snapshots.GetAll(ctx, keys)
		if err == nil && len(snaps) == len(keys) {
			entries := make([]PriceEntry, len(snaps))
			for i, snap := range snaps {
				entries[i] = PriceEntry{
					Drink:     snap.Drink,
					Price:     snap.Price,
					Mean:      snap.Mean,
					UpdatedAt: snap.UpdatedAt.Format(time.RFC3339),
					FromCache: true,
				}
			}
			success(c, entries)
			return
		}
	}

	// 2. 缓存 miss：回退到历史表
	latest, err := s.history.LatestPrices(ctx)
	if err != nil {
		internalError(c, "failed to load prices")
		return
	}

	entries := make([]PriceEntry, 0, len(keys))
	for _, key := range keys {
		rec, ok := latest[key]
		if !ok {
			continue
		}
		entries = append(entries, PriceEntry{
			Drink:     key,
			Price:     rec.Price,
			UpdatedAt: rec.RecordedAt.Format(time.RFC3339),
		})
	}
	success(c, entries)
}

// listDrinks 获取酒水目录
// GET /api/v1/drinks
func (s *Server) listDrinks(c *gin.Context) {
	drinks, err := s.history.ListDrinks(c.Request.Context())
	if err != nil {
		internalError(c, "failed to list drinks")
		return
	}
	success(c, drinks)
}

// getDrinkHistory 获取单个酒水的价格序列
// GET /api/v1/drinks/:key/history?limit=100
func (s *Server) getDrinkHistory(c *gin.Context) {
	key := c.Param("key")
	limit, err := parseLimit(c, 500)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rows, err := s.history.ListHistory(c.Request.Context(), key, limit)
	if err != nil {
		internalError(c, "failed to load history")
		return
	}
	success(c, rows)
}

// getDrinkPurchases 获取单个酒水的模拟购买记录
// GET /api/v1/drinks/:key/purchases?limit=100
func (s *Server) getDrinkPurchases(c *gin.Context) {
	key := c.Param("key")
	limit, err := parseLimit(c, 500)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rows, err := s.history.ListPurchases(c.Request.Context(), key, limit)
	if err != nil {
		internalError(c, "failed to load purchases")
		return
	}
	success(c, rows)
}

// getRollingMean 获取单个酒水的滚动均价 (引擎过程内状态，调试用)
// GET /api/v1/drinks/:key/mean
func (s *Server) getRollingMean(c *gin.Context) {
	key := c.Param("key")

	mean, ok := s.engine.GetRollingMean(key)
	if !ok {
		notFound(c, "drink not found")
		return
	}

	streak, _ := s.engine.Streak(key)
	success(c, gin.H{
		"drink":  key,
		"mean":   mean,
		"streak": streak,
	})
}

// parseLimit 解析 limit 查询参数
func parseLimit(c *gin.Context, def int) (int, error) {
	v := c.Query("limit")
	if v == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit: %s", v)
	}
	return limit, nil
}
