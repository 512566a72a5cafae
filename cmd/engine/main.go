// cmd/engine/main.go
// 动态定价服务 - 主入口
// 包含: 定价引擎 + Dashboard API + Prometheus 指标
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tapmarket/internal/api"
	"tapmarket/internal/config"
	"tapmarket/internal/engine"
	"tapmarket/internal/model"
	"tapmarket/internal/notify"
	"tapmarket/internal/pkg/logger"
	"tapmarket/internal/pkg/ratelimit"
	"tapmarket/internal/square"
	"tapmarket/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	configFile := flag.String("config", "", "config file path")
	flag.Parse()

	// .env 存在时加载 (本地开发)
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger := logger.NewDefault(cfg.App.LogLevel)
	slog.SetDefault(slogger)

	slogger.Info("starting tapmarket pricing service")

	// 致命配置错误：缺少凭据/参数非法时不启动
	if err := cfg.Validate(); err != nil {
		slogger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 初始化 MySQL
	db, err := model.InitDB(&cfg.MySQL, slogger)
	if err != nil {
		slogger.Error("failed to connect MySQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := model.AutoMigrate(db); err != nil {
		slogger.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	history := store.NewHistory(db, slogger)

	// 初始化 Redis (可选：未配置时禁用快照缓存与限流)
	var snapshots *store.SnapshotCache
	var limiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slogger.Error("failed to connect Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		snapshots = store.NewSnapshotCache(rdb, cfg.Redis.SnapshotTTL)
		if cfg.Square.RateLimit > 0 {
			limiter = ratelimit.New(rdb, cfg.Square.RateLimit, cfg.Square.RateBurst)
		}
		slogger.Info("Redis connected", slog.String("addr", cfg.Redis.Addr))
	} else {
		slogger.Warn("Redis not configured, snapshots and rate limiting disabled")
	}

	// 加载酒水目录
	drinks, err := history.ListDrinks(context.Background())
	if err != nil {
		slogger.Error("failed to load drink catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(drinks) == 0 {
		slogger.Error("drink catalog is empty, run cmd/import first")
		os.Exit(1)
	}
	catalog := make([]engine.CatalogEntry, len(drinks))
	for i, d := range drinks {
		catalog[i] = engine.CatalogEntry{Key: d.Key, VariationID: d.VariationID}
	}
	slogger.Info("catalog loaded", slog.Int("drinks", len(catalog)))

	// Square 客户端
	prices := square.NewClient(square.Config{
		BaseURL:     cfg.Square.BaseURL,
		AccessToken: cfg.Square.AccessToken,
		Version:     cfg.Square.Version,
		Timeout:     cfg.Square.Timeout,
	}, limiter, slogger)

	// 需求模拟器：显式播种保证可复现
	seed := cfg.Pricing.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := engine.NewSimulator(rand.NewSource(seed), engine.DemandWeights{
		None:  cfg.Demand.WeightNone,
		One:   cfg.Demand.WeightOne,
		Two:   cfg.Demand.WeightTwo,
		Three: cfg.Demand.WeightThree,
	})
	slogger.Info("demand simulator initialized", slog.Int64("seed", seed))

	// 营业时段与换日跟踪 (上次重置日期从库中恢复)
	loc, err := cfg.Window.Location()
	if err != nil {
		slogger.Error("invalid timezone", slog.String("error", err.Error()))
		os.Exit(1)
	}
	window := engine.NewActiveWindow(
		cfg.Window.OpenHour, cfg.Window.OpenMinute,
		cfg.Window.CloseHour, cfg.Window.CloseMinute, loc)

	lastReset, _, err := history.LastReset(context.Background())
	if err != nil {
		slogger.Error("failed to load last reset marker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tracker := engine.NewResetTracker(lastReset, loc)

	// 定价引擎
	var snapshotter engine.Snapshotter
	if snapshots != nil {
		snapshotter = snapshots
	}
	eng := engine.New(engine.Config{
		Catalog:      catalog,
		Params:       pricingParams(cfg),
		WindowSize:   cfg.Pricing.WindowSize,
		TickInterval: cfg.Pricing.TickInterval,
		Window:       window,
		OpTimeout:    cfg.Square.Timeout,
	}, prices, history, snapshotter, notify.NewLogNotifier(slogger), sim, tracker, slogger)

	// Dashboard API
	apiServer := api.NewServer(history, snapshots, eng, slogger, &api.Config{
		Addr:       cfg.App.HTTPAddr,
		Debug:      cfg.App.Env == "local",
		StaticDir:  cfg.App.StaticDir,
		EnableCORS: cfg.App.EnableCORS,
	})

	// Prometheus 指标
	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := eng.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		slogger.Info("starting metrics server", slog.String("addr", cfg.App.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		slogger.Error("service exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger.Info("service stopped")
}

func pricingParams(cfg *config.Config) engine.Params {
	return engine.Params{
		Floor:      cfg.Pricing.Floor,
		Cap:        cfg.Pricing.Cap,
		Target:     cfg.Pricing.Target,
		WalkRange:  cfg.Pricing.WalkRange,
		DemandStep: cfg.Pricing.DemandStep,
		StreakCap:  cfg.Pricing.StreakCap,
		AlphaMin:   cfg.Pricing.AlphaMin,
		AlphaMax:   cfg.Pricing.AlphaMax,
	}
}
