package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// snapshotKeyPrefix Redis 快照键前缀
const snapshotKeyPrefix = "tapmarket:snapshot:"

// Snapshot 单个酒水的实时价格快照
// dashboard 读取快照而不是每次请求都打 Square API
type Snapshot struct {
	Drink     string    `json:"drink"`
	Price     float64   `json:"price"`
	Mean      float64   `json:"mean"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotCache Redis 实时快照缓存
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache 创建快照缓存
func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(drink string) string {
	return snapshotKeyPrefix + drink
}

// Update 写入一个酒水的最新价格与滚动均价
func (c *SnapshotCache) Update(ctx context.Context, drink string, price, mean float64, at time.Time) error {
	key := snapshotKey(drink)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"price":      strconv.FormatFloat(price, 'f', 2, 64),
		"mean":       strconv.FormatFloat(mean, 'f', 4, 64),
		"updated_at": at.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update snapshot %s: %w", drink, err)
	}
	return nil
}

// Get 读取单个酒水的快照
// 快照不存在时返回 (nil, nil)
func (c *SnapshotCache) Get(ctx context.Context, drink string) (*Snapshot, error) {
	fields, err := c.rdb.HGetAll(ctx, snapshotKey(drink)).Result()
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", drink, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseSnapshot(drink, fields)
}

// GetAll 批量读取快照，缺失的条目跳过
func (c *SnapshotCache) GetAll(ctx context.Context, drinks []string) ([]Snapshot, error) {
	if len(drinks) == 0 {
		return nil, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(drinks))
	for i, d := range drinks {
		cmds[i] = pipe.HGetAll(ctx, snapshotKey(d))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}

	out := make([]Snapshot, 0, len(drinks))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		snap, err := parseSnapshot(drinks[i], fields)
		if err != nil {
			continue
		}
		out = append(out, *snap)
	}
	return out, nil
}

// Clear 删除全部快照（换日重置时调用）
func (c *SnapshotCache) Clear(ctx context.Context, drinks []string) error {
	if len(drinks) == 0 {
		return nil
	}
	keys := make([]string, len(drinks))
	for i, d := range drinks {
		keys[i] = snapshotKey(d)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func parseSnapshot(drink string, fields map[string]string) (*Snapshot, error) {
	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot price %q: %w", fields["price"], err)
	}
	mean, err := strconv.ParseFloat(fields["mean"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot mean %q: %w", fields["mean"], err)
	}
	at, err := time.Parse(time.RFC3339, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("parse snapshot timestamp %q: %w", fields["updated_at"], err)
	}
	return &Snapshot{Drink: drink, Price: price, Mean: mean, UpdatedAt: at}, nil
}
