// Package metrics 提供 Prometheus 监控指标定义。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定价循环相关指标
var (
	// EngineTicks 定价循环执行次数
	EngineTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapmarket_engine_ticks_total",
		Help: "Number of engine scheduling decisions",
	}, []string{"result"}) // result: active, idle, reset

	// PriceUpdates 单品价格更新结果
	PriceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapmarket_price_updates_total",
		Help: "Per-drink price update outcomes",
	}, []string{"drink", "outcome"}) // outcome: ok, fetch_error, update_error, persist_error

	// CurrentPrice 当前价格
	CurrentPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tapmarket_current_price_dollars",
		Help: "Last realized price per drink",
	}, []string{"drink"})

	// RollingMean 滚动均价
	RollingMean = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tapmarket_rolling_mean_dollars",
		Help: "Rolling window mean price per drink",
	}, []string{"drink"})

	// DailyResets 每日状态重置次数
	DailyResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapmarket_daily_resets_total",
		Help: "Number of trading-day state resets",
	})
)

// 模拟购买相关指标
var (
	// SimulatedPurchases 模拟购买事件
	SimulatedPurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapmarket_simulated_purchases_total",
		Help: "Simulated purchase events by drink",
	}, []string{"drink"})

	// PurchaseQuantity 模拟购买数量分布
	PurchaseQuantity = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tapmarket_purchase_quantity",
		Help:    "Quantity distribution of simulated purchases",
		Buckets: []float64{1, 2, 3},
	})
)

// Square API 相关指标
var (
	// SquareRequestDuration Square API 请求耗时
	SquareRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tapmarket_square_request_duration_seconds",
		Help:    "Square Catalog API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"}) // operation: fetch, upsert; status: ok, error
)
