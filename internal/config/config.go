package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置
type Config struct {
	App     AppConfig     `json:"app"`
	Window  WindowConfig  `json:"window"`
	Pricing PricingConfig `json:"pricing"`
	Demand  DemandConfig  `json:"demand"`
	Square  SquareConfig  `json:"square"`
	MySQL   MySQLConfig   `json:"mysql"`
	Redis   RedisConfig   `json:"redis"`
}

// AppConfig 应用程序基础配置
type AppConfig struct {
	Env         string `json:"env"`          // 运行环境: local / prod
	LogLevel    string `json:"log_level"`    // 日志级别: debug / info / warn / error
	HTTPAddr    string `json:"http_addr"`    // Dashboard API 监听地址
	MetricsAddr string `json:"metrics_addr"` // Prometheus 指标监听地址
	StaticDir   string `json:"static_dir"`   // Dashboard 静态文件目录 (空则不启用)
	EnableCORS  bool   `json:"enable_cors"`  // 启用 CORS (开发模式)
}

// WindowConfig 营业时段配置
// 引擎只在 [Open, Close) 时段内执行定价循环
type WindowConfig struct {
	OpenHour    int    `json:"open_hour"`    // 开始小时 (默认 16)
	OpenMinute  int    `json:"open_minute"`  // 开始分钟
	CloseHour   int    `json:"close_hour"`   // 结束小时 (默认 23)
	CloseMinute int    `json:"close_minute"` // 结束分钟 (默认 59)
	Timezone    string `json:"timezone"`     // IANA 时区名 (默认 Local)
}

// PricingConfig 定价算法配置
type PricingConfig struct {
	Floor        float64       `json:"floor"`         // 最低价格 (默认 2.00)
	Cap          float64       `json:"cap"`           // 最高价格 (0 = 不限制, 默认 10.00)
	Target       float64       `json:"target"`        // 均衡目标价 (默认 5.00)
	WalkRange    float64       `json:"walk_range"`    // 随机游走幅度 ±R (默认 0.10)
	DemandStep   float64       `json:"demand_step"`   // 每单位购买的需求漂移 (默认 0.01)
	StreakCap    float64       `json:"streak_cap"`    // 无购买连续漂移上限 (默认 0.03)
	AlphaMin     float64       `json:"alpha_min"`     // 目标价附近的均值回归强度 (默认 0.01)
	AlphaMax     float64       `json:"alpha_max"`     // 锚点价附近的均值回归强度 (默认 0.25)
	WindowSize   int           `json:"window_size"`   // 滚动窗口容量 (默认 20)
	TickInterval time.Duration `json:"tick_interval"` // 定价周期 (默认 60s)
	Seed         int64         `json:"seed"`          // 随机种子 (0 = 按时间播种)
}

// DemandConfig 模拟需求配置
// 权重对应每周期购买数量 {0,1,2,3}，需求和为 1
type DemandConfig struct {
	WeightNone  float64 `json:"weight_none"`  // 无购买概率 (默认 0.50)
	WeightOne   float64 `json:"weight_one"`   // 购买 1 件概率 (默认 0.30)
	WeightTwo   float64 `json:"weight_two"`   // 购买 2 件概率 (默认 0.10)
	WeightThree float64 `json:"weight_three"` // 购买 3 件概率 (默认 0.10)
}

// SquareConfig Square Catalog API 配置
type SquareConfig struct {
	BaseURL     string        `json:"base_url"`     // API 地址 (默认 sandbox)
	AccessToken string        `json:"access_token"` // Bearer Token (必填)
	Version     string        `json:"version"`      // Square-Version 请求头
	Timeout     time.Duration `json:"timeout"`      // 单次请求超时 (默认 10s)
	RateLimit   int           `json:"rate_limit"`   // 每秒请求数上限 (0 = 不限流)
	RateBurst   int           `json:"rate_burst"`   // 限流桶容量
}

// MySQLConfig MySQL 数据库配置
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr         string        `json:"addr"`           // Redis 地址 (空则禁用快照缓存/限流)
	Password     string        `json:"password"`       // Redis 密码
	PoolSize     int           `json:"pool_size"`      // 连接池大小 (默认 10)
	DialTimeout  time.Duration `json:"dial_timeout"`   // 连接超时 (默认 5s)
	ReadTimeout  time.Duration `json:"read_timeout"`   // 读取超时 (默认 3s)
	WriteTimeout time.Duration `json:"write_timeout"`  // 写入超时 (默认 3s)
	SnapshotTTL  time.Duration `json:"snapshot_ttl"`   // 价格快照 TTL (默认 24h)
}

// Load 从 JSON 文件加载配置
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "local",
			LogLevel:    "info",
			HTTPAddr:    ":8080",
			MetricsAddr: ":2112",
		},
		Window: WindowConfig{
			OpenHour:    16,
			OpenMinute:  0,
			CloseHour:   23,
			CloseMinute: 59,
			Timezone:    "Local",
		},
		Pricing: PricingConfig{
			Floor:        2.00,
			Cap:          10.00,
			Target:       5.00,
			WalkRange:    0.10,
			DemandStep:   0.01,
			StreakCap:    0.03,
			AlphaMin:     0.01,
			AlphaMax:     0.25,
			WindowSize:   20,
			TickInterval: 60 * time.Second,
		},
		Demand: DemandConfig{
			WeightNone:  0.50,
			WeightOne:   0.30,
			WeightTwo:   0.10,
			WeightThree: 0.10,
		},
		Square: SquareConfig{
			BaseURL: "https://connect.squareupsandbox.com",
			Version: "2025-05-21",
			Timeout: 10 * time.Second,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/tapmarket?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:         "",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			SnapshotTTL:  24 * time.Hour,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	// App
	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}

	// Window: OpenHour 0 是合法值 (午夜开市)，只有完全未设置时才回退默认
	if cfg.Window.OpenHour == 0 && cfg.Window.OpenMinute == 0 &&
		cfg.Window.CloseHour == 0 && cfg.Window.CloseMinute == 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Window.Timezone == "" {
		cfg.Window.Timezone = defaults.Window.Timezone
	}

	// Pricing
	if cfg.Pricing.Floor == 0 {
		cfg.Pricing.Floor = defaults.Pricing.Floor
	}
	if cfg.Pricing.Target == 0 {
		cfg.Pricing.Target = defaults.Pricing.Target
	}
	if cfg.Pricing.WalkRange == 0 {
		cfg.Pricing.WalkRange = defaults.Pricing.WalkRange
	}
	if cfg.Pricing.DemandStep == 0 {
		cfg.Pricing.DemandStep = defaults.Pricing.DemandStep
	}
	if cfg.Pricing.StreakCap == 0 {
		cfg.Pricing.StreakCap = defaults.Pricing.StreakCap
	}
	if cfg.Pricing.AlphaMin == 0 {
		cfg.Pricing.AlphaMin = defaults.Pricing.AlphaMin
	}
	if cfg.Pricing.AlphaMax == 0 {
		cfg.Pricing.AlphaMax = defaults.Pricing.AlphaMax
	}
	if cfg.Pricing.WindowSize == 0 {
		cfg.Pricing.WindowSize = defaults.Pricing.WindowSize
	}
	if cfg.Pricing.TickInterval == 0 {
		cfg.Pricing.TickInterval = defaults.Pricing.TickInterval
	}

	// Demand: 全零视为未配置
	if cfg.Demand.WeightNone == 0 && cfg.Demand.WeightOne == 0 &&
		cfg.Demand.WeightTwo == 0 && cfg.Demand.WeightThree == 0 {
		cfg.Demand = defaults.Demand
	}

	// Square
	if cfg.Square.BaseURL == "" {
		cfg.Square.BaseURL = defaults.Square.BaseURL
	}
	if cfg.Square.Version == "" {
		cfg.Square.Version = defaults.Square.Version
	}
	if cfg.Square.Timeout == 0 {
		cfg.Square.Timeout = defaults.Square.Timeout
	}

	// MySQL
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}

	// Redis
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = defaults.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = defaults.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = defaults.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = defaults.Redis.WriteTimeout
	}
	if cfg.Redis.SnapshotTTL == 0 {
		cfg.Redis.SnapshotTTL = defaults.Redis.SnapshotTTL
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	// App
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.App.StaticDir = v
	}
	if v := os.Getenv("ENABLE_CORS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.EnableCORS = b
		}
	}

	// Window
	if v := os.Getenv("WINDOW_OPEN_HOUR"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Window.OpenHour = i
		}
	}
	if v := os.Getenv("WINDOW_OPEN_MINUTE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Window.OpenMinute = i
		}
	}
	if v := os.Getenv("WINDOW_CLOSE_HOUR"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Window.CloseHour = i
		}
	}
	if v := os.Getenv("WINDOW_CLOSE_MINUTE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Window.CloseMinute = i
		}
	}
	if v := os.Getenv("WINDOW_TIMEZONE"); v != "" {
		cfg.Window.Timezone = v
	}

	// Pricing
	if v := os.Getenv("PRICING_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.Floor = f
		}
	}
	if v := os.Getenv("PRICING_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.Cap = f
		}
	}
	if v := os.Getenv("PRICING_TARGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.Target = f
		}
	}
	if v := os.Getenv("PRICING_WALK_RANGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.WalkRange = f
		}
	}
	if v := os.Getenv("PRICING_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pricing.TickInterval = d
		}
	}
	if v := os.Getenv("PRICING_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Pricing.Seed = i
		}
	}

	// Square
	if v := os.Getenv("SQUARE_BASE_URL"); v != "" {
		cfg.Square.BaseURL = v
	}
	if v := os.Getenv("SQUARE_ACCESS_TOKEN"); v != "" {
		cfg.Square.AccessToken = v
	}
	if v := os.Getenv("SQUARE_VERSION"); v != "" {
		cfg.Square.Version = v
	}
	if v := os.Getenv("SQUARE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Square.Timeout = d
		}
	}
	if v := os.Getenv("SQUARE_RATE_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Square.RateLimit = i
		}
	}
	if v := os.Getenv("SQUARE_RATE_BURST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Square.RateBurst = i
		}
	}

	// MySQL
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") {
		cfg.MySQL.DSN = buildMySQLDSN(cfg.MySQL.DSN)
	}

	// Redis
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Redis.PoolSize = i
		}
	}
}

// Validate 校验启动必备配置
// 返回非 nil 即为致命配置错误，进程不应继续启动
func (c *Config) Validate() error {
	if c.Square.AccessToken == "" {
		return fmt.Errorf("config: SQUARE_ACCESS_TOKEN is required")
	}
	if c.Pricing.Floor <= 0 {
		return fmt.Errorf("config: pricing floor must be positive, got %v", c.Pricing.Floor)
	}
	if c.Pricing.Cap > 0 && c.Pricing.Cap < c.Pricing.Floor {
		return fmt.Errorf("config: pricing cap %v below floor %v", c.Pricing.Cap, c.Pricing.Floor)
	}
	if c.Pricing.Target < c.Pricing.Floor || (c.Pricing.Cap > 0 && c.Pricing.Target > c.Pricing.Cap) {
		return fmt.Errorf("config: pricing target %v outside [floor, cap]", c.Pricing.Target)
	}
	if c.Pricing.WindowSize <= 0 {
		return fmt.Errorf("config: window size must be positive, got %d", c.Pricing.WindowSize)
	}

	sum := c.Demand.WeightNone + c.Demand.WeightOne + c.Demand.WeightTwo + c.Demand.WeightThree
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("config: demand weights must sum to 1, got %v", sum)
	}

	if err := validateWindow(c.Window); err != nil {
		return err
	}
	if _, err := c.Window.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Window.Timezone, err)
	}
	return nil
}

func validateWindow(w WindowConfig) error {
	if w.OpenHour < 0 || w.OpenHour > 23 || w.CloseHour < 0 || w.CloseHour > 23 {
		return fmt.Errorf("config: window hours out of range")
	}
	if w.OpenMinute < 0 || w.OpenMinute > 59 || w.CloseMinute < 0 || w.CloseMinute > 59 {
		return fmt.Errorf("config: window minutes out of range")
	}
	openMin := w.OpenHour*60 + w.OpenMinute
	closeMin := w.CloseHour*60 + w.CloseMinute
	if openMin >= closeMin {
		return fmt.Errorf("config: window open %02d:%02d not before close %02d:%02d",
			w.OpenHour, w.OpenMinute, w.CloseHour, w.CloseMinute)
	}
	return nil
}

// Location 解析营业时段所在时区
func (w WindowConfig) Location() (*time.Location, error) {
	if w.Timezone == "" || strings.EqualFold(w.Timezone, "Local") {
		return time.Local, nil
	}
	return time.LoadLocation(w.Timezone)
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func buildMySQLDSN(fallbackDSN string) string {
	parsed, err := mysql.ParseDSN(fallbackDSN)
	if err != nil {
		parsed = &mysql.Config{
			User:   "root",
			Passwd: "",
			Net:    "tcp",
			Addr:   "localhost:3306",
			DBName: "tapmarket",
			Params: map[string]string{
				"parseTime": "true",
				"loc":       "Local",
			},
		}
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		port := "3306"
		if p := os.Getenv("DB_PORT"); p != "" {
			port = p
		} else if strings.Contains(parsed.Addr, ":") {
			parts := strings.Split(parsed.Addr, ":")
			if len(parts) == 2 {
				port = parts[1]
			}
		}
		parsed.Addr = v + ":" + port
	}
	if v := os.Getenv("DB_USER"); v != "" {
		parsed.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		parsed.Passwd = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		parsed.DBName = v
	}

	return parsed.FormatDSN()
}
