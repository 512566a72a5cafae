// Package ratelimit 基于 Redis 的令牌桶限流。
// 用于约束对 Square Catalog API 的请求速率。
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisClientNil = errors.New("redis client is nil")

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return 1
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
if refill > 0 then
  tokens = math.min(burst, tokens + refill)
  ts = now
end

if tokens < requested then
  redis.call("HMSET", key, "tokens", tokens, "ts", ts)
  redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))
  return 0
end

tokens = tokens - requested
redis.call("HMSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))
return 1
`

// Limiter Redis 令牌桶限流器
// rate 为每秒令牌数，burst 为桶容量；两者任一 <= 0 时直接放行
type Limiter struct {
	rdb    *redis.Client
	script *redis.Script
	rate   int
	burst  int
}

// New 创建限流器
func New(rdb *redis.Client, rate, burst int) *Limiter {
	return &Limiter{
		rdb:    rdb,
		script: redis.NewScript(tokenBucketLua),
		rate:   rate,
		burst:  burst,
	}
}

// Allow 尝试从 key 对应的桶中取一个令牌
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, ErrRedisClientNil
	}
	if key == "" {
		return false, fmt.Errorf("rate limit key is empty")
	}
	if l.rate <= 0 || l.burst <= 0 {
		return true, nil
	}

	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb,
		[]string{"tapmarket:ratelimit:" + key},
		strconv.Itoa(l.rate),
		strconv.Itoa(l.burst),
		strconv.FormatInt(now, 10),
		"1",
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit script: %w", err)
	}
	return res == 1, nil
}

// Wait 阻塞直到取得令牌或 ctx 取消
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
