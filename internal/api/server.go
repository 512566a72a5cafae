// internal/api/server.go
// Dashboard HTTP API - 使用 Gin 框架
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tapmarket/internal/engine"
	"tapmarket/internal/store"

	"github.com/gin-gonic/gin"
)

// Server Dashboard API 服务器
type Server struct {
	router    *gin.Engine
	history   *store.History
	snapshots *store.SnapshotCache // 可为 nil
	engine    *engine.Engine
	logger    *slog.Logger
	server    *http.Server
}

// Config 服务器配置
type Config struct {
	Addr         string        // 监听地址 (如 ":8080")
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	Debug        bool          // 调试模式
	StaticDir    string        // 静态文件目录 (如 "web")
	EnableCORS   bool          // 启用 CORS (开发模式)
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer 创建 API 服务器
func NewServer(
	history *store.History,
	snapshots *store.SnapshotCache,
	eng *engine.Engine,
	logger *slog.Logger,
	cfg *Config,
) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS 中间件 (开发模式)
	if cfg.EnableCORS {
		router.Use(corsMiddleware())
	}

	s := &Server{
		router:    router,
		history:   history,
		snapshots: snapshots,
		engine:    eng,
		logger:    logger,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	s.setupRoutes()

	// 静态文件服务 (dashboard 前端)
	if cfg.StaticDir != "" {
		router.Static("/assets", cfg.StaticDir+"/assets")
		router.StaticFile("/", cfg.StaticDir+"/index.html")
		router.StaticFile("/favicon.ico", cfg.StaticDir+"/favicon.ico")
		logger.Info("static file server enabled", slog.String("dir", cfg.StaticDir))
	}

	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 健康检查
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/prices", s.listPrices)

		drinks := v1.Group("/drinks")
		{
			drinks.GET("", s.listDrinks)
			drinks.GET("/:key/history", s.getDrinkHistory)
			drinks.GET("/:key/purchases", s.getDrinkPurchases)
			drinks.GET("/:key/mean", s.getRollingMean)
		}

		exports := v1.Group("/export")
		{
			exports.GET("/history.csv", s.exportHistoryCSV)
			exports.GET("/history.xlsx", s.exportHistoryXLSX)
		}
	}
}

// healthCheck 健康检查
// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start 启动服务器（阻塞）
func (s *Server) Start() error {
	s.logger.Info("starting API server", slog.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router 获取路由器（用于测试）
func (s *Server) Router() *gin.Engine {
	return s.router
}

// requestLogger 请求日志中间件
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware CORS 中间件 (允许所有来源)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Response 标准响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// success 成功响应
func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// errorResponse 错误响应
func errorResponse(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

// badRequest 400 错误
func badRequest(c *gin.Context, message string) {
	errorResponse(c, http.StatusBadRequest, 400, message)
}

// notFound 404 错误
func notFound(c *gin.Context, message string) {
	errorResponse(c, http.StatusNotFound, 404, message)
}

// internalError 500 错误
func internalError(c *gin.Context, message string) {
	errorResponse(c, http.StatusInternalServerError, 500, message)
}
