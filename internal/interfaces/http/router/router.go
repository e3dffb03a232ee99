// Package router 提供 HTTP 路由配置
package router

import (
	"net/http"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/interfaces/http/handler"
	"horror-nobel-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由用到的处理器与静态资源
type Handlers struct {
	Story  *handler.StoryHandler
	Health *handler.HealthHandler
	// Audio 朗读文件目录，为 nil 时不挂载静态路由
	Audio http.FileSystem
	// AudioPrefix 静态音频路由前缀，如 /static/audio
	AudioPrefix string
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.cfg.Observability.Metrics.Path))
	}

	r.engine.Use(middleware.StoryContext())
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Your Horror Nobel API"})
	})

	// 系统端点
	if h.Health != nil {
		r.engine.GET("/health", h.Health.Health)
		r.engine.GET("/ready", h.Health.Ready)
		r.engine.GET("/live", h.Health.Live)
	}

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 朗读音频静态文件
	if h.Audio != nil && h.AudioPrefix != "" {
		r.engine.StaticFS(h.AudioPrefix, h.Audio)
	}

	if h.Story != nil {
		RegisterV1Routes(r.engine.Group("/v1"), h.Story)
	}
}
