// Package square 封装 Square Catalog API 的价格读写。
// 更新沿用平台的 batch-upsert 协议：先取回完整 catalog object，
// 改写 price_money.amount 后整体回写，并附带幂等键。
package square

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"tapmarket/internal/pkg/metrics"
	"tapmarket/internal/pkg/ratelimit"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// rateLimitKey Square API 共用一个令牌桶
const rateLimitKey = "square"

// FetchError 无法读取当前价格；调用方本周期跳过该条目
type FetchError struct {
	VariationID string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("square fetch %s: %v", e.VariationID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UpdateError 无法写入计算出的价格；调用方记录日志后继续
type UpdateError struct {
	VariationID string
	Err         error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("square update %s: %v", e.VariationID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// Config Square 客户端配置
type Config struct {
	BaseURL     string
	AccessToken string
	Version     string // Square-Version 请求头
	Timeout     time.Duration
}

// Client Square Catalog API 客户端
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter // 可为 nil
	logger  *slog.Logger
}

// NewClient 创建客户端
func NewClient(cfg Config, limiter *ratelimit.Limiter, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.AccessToken).
		SetHeader("Square-Version", cfg.Version).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  log,
	}
}

// catalogObjectResponse GET /v2/catalog/object/{id} 响应
type catalogObjectResponse struct {
	Object json.RawMessage `json:"object"`
}

// variationPrice 从 catalog object 中提取价格所需的最小结构
type variationPrice struct {
	ItemVariationData struct {
		PriceMoney struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"price_money"`
	} `json:"item_variation_data"`
}

// batchUpsertRequest POST /v2/catalog/batch-upsert 请求体
type batchUpsertRequest struct {
	IdempotencyKey string  `json:"idempotency_key"`
	Batches        []batch `json:"batches"`
}

type batch struct {
	Objects []json.RawMessage `json:"objects"`
}

// FetchPrice 读取 item variation 的当前价格（美元）
func (c *Client) FetchPrice(ctx context.Context, variationID string) (float64, error) {
	raw, err := c.fetchObject(ctx, variationID)
	if err != nil {
		return 0, &FetchError{VariationID: variationID, Err: err}
	}

	var v variationPrice
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &FetchError{VariationID: variationID, Err: fmt.Errorf("decode variation: %w", err)}
	}

	return float64(v.ItemVariationData.PriceMoney.Amount) / 100.0, nil
}

// StorePrice 将 item variation 的价格更新为 price（美元）
// 平台协议要求整对象回写：先 GET 原对象，改 amount 后 batch-upsert
func (c *Client) StorePrice(ctx context.Context, variationID string, price float64) error {
	raw, err := c.fetchObject(ctx, variationID)
	if err != nil {
		return &UpdateError{VariationID: variationID, Err: fmt.Errorf("pre-upsert fetch: %w", err)}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &UpdateError{VariationID: variationID, Err: fmt.Errorf("decode object: %w", err)}
	}

	var data map[string]any
	if err := json.Unmarshal(obj["item_variation_data"], &data); err != nil {
		return &UpdateError{VariationID: variationID, Err: fmt.Errorf("decode variation data: %w", err)}
	}
	money, ok := data["price_money"].(map[string]any)
	if !ok {
		money = map[string]any{"currency": "USD"}
	}
	money["amount"] = int64(math.Round(price * 100))
	data["price_money"] = money

	patched, err := json.Marshal(data)
	if err != nil {
		return &UpdateError{VariationID: variationID, Err: err}
	}
	obj["item_variation_data"] = patched

	full, err := json.Marshal(obj)
	if err != nil {
		return &UpdateError{VariationID: variationID, Err: err}
	}

	body := batchUpsertRequest{
		IdempotencyKey: uuid.New().String(),
		Batches:        []batch{{Objects: []json.RawMessage{full}}},
	}

	if err := c.throttle(ctx); err != nil {
		return &UpdateError{VariationID: variationID, Err: err}
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v2/catalog/batch-upsert")
	c.observe("upsert", start, err == nil && resp.StatusCode() == http.StatusOK)

	if err != nil {
		return &UpdateError{VariationID: variationID, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &UpdateError{
			VariationID: variationID,
			Err:         fmt.Errorf("batch-upsert: HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200)),
		}
	}

	c.logger.Debug("square price updated",
		slog.String("variation_id", variationID),
		slog.Float64("price", price))
	return nil
}

// fetchObject 取回完整 catalog object
func (c *Client) fetchObject(ctx context.Context, variationID string) (json.RawMessage, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/v2/catalog/object/" + variationID)
	c.observe("fetch", start, err == nil && resp.StatusCode() == http.StatusOK)

	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("catalog object not found")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var decoded catalogObjectResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Object) == 0 {
		return nil, fmt.Errorf("empty catalog object")
	}
	return decoded.Object, nil
}

// throttle 限流；未配置限流器时直接放行
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, rateLimitKey)
}

func (c *Client) observe(op string, start time.Time, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	metrics.SquareRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
