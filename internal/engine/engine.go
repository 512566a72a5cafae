package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tapmarket/internal/pkg/metrics"
)

// CatalogEntry 引擎视角的目录条目
type CatalogEntry struct {
	Key         string // 稳定键 (如 "guinness")
	VariationID string // 外部平台的 item variation ID
}

// PriceStore 外部价格存储 (Square Catalog)
type PriceStore interface {
	FetchPrice(ctx context.Context, variationID string) (float64, error)
	StorePrice(ctx context.Context, variationID string, price float64) error
}

// HistoryStore 持久化历史存储
type HistoryStore interface {
	AppendHistory(ctx context.Context, drinkKey string, price float64, at time.Time) error
	AppendPurchase(ctx context.Context, drinkKey string, quantity int, price float64, at time.Time) error
	ResetDailyState(ctx context.Context, day time.Time) error
	LastReset(ctx context.Context) (time.Time, bool, error)
}

// Snapshotter 实时快照缓存，供 dashboard 读取；可为 nil
type Snapshotter interface {
	Update(ctx context.Context, drink string, price, mean float64, at time.Time) error
	Clear(ctx context.Context, drinks []string) error
}

// Notifier 换日重置通知；邮件等外部投递由实现方决定，可为 nil
type Notifier interface {
	DailyReset(ctx context.Context, day time.Time)
}

// drinkState 单个酒水的过程内状态
type drinkState struct {
	window       *Window
	streak       int // 无购买连续周期数
	lastPurchase time.Time
}

// Config 引擎配置
type Config struct {
	Catalog      []CatalogEntry
	Params       Params
	WindowSize   int           // 滚动窗口容量
	TickInterval time.Duration // 定价周期
	Window       ActiveWindow  // 营业时段
	OpTimeout    time.Duration // 单品外部操作超时
}

// Engine 定价引擎
// 单线程 tick 驱动：每个周期顺序处理全部目录，单品错误互相隔离
type Engine struct {
	cfg      Config
	prices   PriceStore
	history  HistoryStore
	snapshot Snapshotter
	notifier Notifier
	sim      *Simulator
	tracker  *ResetTracker
	logger   *slog.Logger

	// now 可注入，测试用
	now func() time.Time

	mu    sync.RWMutex
	state map[string]*drinkState
}

// New 创建引擎
// tracker 的初始 lastReset 应从 HistoryStore.LastReset 恢复，由调用方传入
func New(cfg Config, prices PriceStore, history HistoryStore, snapshot Snapshotter,
	notifier Notifier, sim *Simulator, tracker *ResetTracker, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 10 * time.Second
	}

	state := make(map[string]*drinkState, len(cfg.Catalog))
	for _, entry := range cfg.Catalog {
		state[entry.Key] = &drinkState{window: NewWindow(cfg.WindowSize)}
	}

	return &Engine{
		cfg:      cfg,
		prices:   prices,
		history:  history,
		snapshot: snapshot,
		notifier: notifier,
		sim:      sim,
		tracker:  tracker,
		logger:   log,
		now:      time.Now,
		state:    state,
	}
}

// Tick 执行一次调度决策，并在营业时段内完成一轮完整的目录定价
// 返回下一次调用前应休眠的时长；可安全地反复调用
func (e *Engine) Tick(ctx context.Context) time.Duration {
	now := e.now()

	if !e.cfg.Window.Contains(now) {
		metrics.EngineTicks.WithLabelValues("idle").Inc()
		sleep := e.cfg.Window.UntilNextOpen(now)
		e.logger.Debug("outside active window",
			slog.Duration("until_open", sleep))
		return sleep
	}

	// 新交易日的第一个周期触发换日重置，同日内幂等
	if e.tracker.ShouldReset(now) {
		e.resetDay(ctx, now)
	}

	ev := e.sim.Generate(e.catalogKeys())
	if ev != nil {
		metrics.SimulatedPurchases.WithLabelValues(ev.Drink).Inc()
		metrics.PurchaseQuantity.Observe(float64(ev.Quantity))
		e.logger.Info("simulated purchase",
			slog.String("drink", ev.Drink),
			slog.Int("quantity", ev.Quantity))
	}

	for _, entry := range e.cfg.Catalog {
		e.processDrink(ctx, entry, ev, now)
	}

	metrics.EngineTicks.WithLabelValues("active").Inc()
	return e.cfg.TickInterval
}

// Run 驱动定价循环直到 ctx 取消
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("pricing engine started",
		slog.Int("catalog_size", len(e.cfg.Catalog)),
		slog.Duration("tick_interval", e.cfg.TickInterval))

	for {
		sleep := e.Tick(ctx)

		select {
		case <-ctx.Done():
			e.logger.Info("pricing engine stopped")
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// resetDay 清空持久化日志与过程内状态
// 持久化重置失败时不标记完成，下个周期重试
func (e *Engine) resetDay(ctx context.Context, now time.Time) {
	if err := e.history.ResetDailyState(ctx, now); err != nil {
		e.logger.Error("daily reset failed",
			slog.String("error", err.Error()))
		return
	}

	e.mu.Lock()
	for _, st := range e.state {
		st.window.Reset()
		st.streak = 0
		st.lastPurchase = time.Time{}
	}
	e.mu.Unlock()

	e.tracker.MarkReset(now)
	metrics.DailyResets.Inc()
	metrics.EngineTicks.WithLabelValues("reset").Inc()

	if e.snapshot != nil {
		if err := e.snapshot.Clear(ctx, e.catalogKeys()); err != nil {
			e.logger.Warn("failed to clear snapshots",
				slog.String("error", err.Error()))
		}
	}
	if e.notifier != nil {
		e.notifier.DailyReset(ctx, now)
	}

	e.logger.Info("new trading day",
		slog.String("date", now.Format("2006-01-02")))
}

// processDrink 处理单个酒水的一次定价
// 任何一步失败都只影响本条目：记录日志、跳过，下周期重试
func (e *Engine) processDrink(ctx context.Context, entry CatalogEntry, ev *DemandEvent, now time.Time) {
	quantity := 0
	if ev != nil && ev.Drink == entry.Key {
		quantity = ev.Quantity
	}

	// 连续计数是每个周期的副产品，与定价成败无关
	e.mu.Lock()
	st := e.state[entry.Key]
	if quantity > 0 {
		st.streak = 0
		st.lastPurchase = now
	} else {
		st.streak++
	}
	streak := st.streak
	e.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OpTimeout)
	defer cancel()

	current, err := e.prices.FetchPrice(opCtx, entry.VariationID)
	if err != nil {
		metrics.PriceUpdates.WithLabelValues(entry.Key, "fetch_error").Inc()
		e.logger.Warn("failed to fetch price, skipping drink",
			slog.String("drink", entry.Key),
			slog.String("error", err.Error()))
		return
	}

	// 窗口永远记录已实现价格，先入窗再取均值
	e.mu.Lock()
	st.window.Append(current)
	mean := st.window.Mean()
	e.mu.Unlock()

	// 购买按当前挂牌价成交，先于价格更新入账
	if quantity > 0 {
		if err := e.history.AppendPurchase(opCtx, entry.Key, quantity, current, now); err != nil {
			metrics.PriceUpdates.WithLabelValues(entry.Key, "persist_error").Inc()
			e.logger.Warn("failed to record purchase",
				slog.String("drink", entry.Key),
				slog.String("error", err.Error()))
		}
	}

	walk := e.sim.Walk(e.cfg.Params.WalkRange)
	next := Next(current, quantity, streak, mean, walk, e.cfg.Params)

	if err := e.prices.StorePrice(opCtx, entry.VariationID, next); err != nil {
		metrics.PriceUpdates.WithLabelValues(entry.Key, "update_error").Inc()
		e.logger.Warn("failed to store price, skipping history",
			slog.String("drink", entry.Key),
			slog.String("error", err.Error()))
		return
	}

	// 历史序列只记录外部存储已接受的价格
	if err := e.history.AppendHistory(opCtx, entry.Key, next, now); err != nil {
		metrics.PriceUpdates.WithLabelValues(entry.Key, "persist_error").Inc()
		e.logger.Warn("failed to append history",
			slog.String("drink", entry.Key),
			slog.String("error", err.Error()))
	}

	if e.snapshot != nil {
		if err := e.snapshot.Update(opCtx, entry.Key, next, mean, now); err != nil {
			e.logger.Debug("failed to update snapshot",
				slog.String("drink", entry.Key),
				slog.String("error", err.Error()))
		}
	}

	metrics.PriceUpdates.WithLabelValues(entry.Key, "ok").Inc()
	metrics.CurrentPrice.WithLabelValues(entry.Key).Set(next)
	metrics.RollingMean.WithLabelValues(entry.Key).Set(mean)

	e.logger.Debug("price updated",
		slog.String("drink", entry.Key),
		slog.Float64("current", current),
		slog.Float64("next", next),
		slog.Float64("mean", mean),
		slog.Int("quantity", quantity),
		slog.Int("streak", streak))
}

// GetRollingMean 返回某个酒水的滚动均价，目录外的键返回 false
func (e *Engine) GetRollingMean(drinkKey string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.state[drinkKey]
	if !ok {
		return 0, false
	}
	return st.window.Mean(), true
}

// Streak 返回某个酒水的无购买连续计数，目录外的键返回 false
func (e *Engine) Streak(drinkKey string) (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.state[drinkKey]
	if !ok {
		return 0, false
	}
	return st.streak, true
}

// LastPurchase 返回某个酒水最近一次模拟购买时间
func (e *Engine) LastPurchase(drinkKey string) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.state[drinkKey]
	if !ok {
		return time.Time{}, false
	}
	return st.lastPurchase, true
}

func (e *Engine) catalogKeys() []string {
	keys := make([]string, len(e.cfg.Catalog))
	for i, entry := range e.cfg.Catalog {
		keys[i] = entry.Key
	}
	return keys
}
