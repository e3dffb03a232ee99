package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 可探活的后端
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	storeName string
	store     HealthChecker
	// redis 可选，不可用时只降级不影响就绪
	redis HealthChecker
}

// NewHealthHandler 创建健康检查处理器，redis 可为 nil
func NewHealthHandler(storeName string, store HealthChecker, redis HealthChecker) *HealthHandler {
	return &HealthHandler{
		storeName: storeName,
		store:     store,
		redis:     redis,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 检查服务是否可以接收流量
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	name := "store"
	if h != nil && h.storeName != "" {
		name = h.storeName
	}
	checks := map[string]*readinessCheck{}
	ready := true

	// 故事存储（必需）
	if h == nil || h.store == nil {
		checks[name] = &readinessCheck{Status: "missing", Error: "story store not configured"}
		ready = false
	} else {
		checks[name] = probe(ctx, h.store)
		if checks[name].Status != "ok" {
			ready = false
		}
	}

	// Redis（可选）
	if h == nil || h.redis == nil {
		checks["redis"] = &readinessCheck{Status: "disabled"}
	} else {
		checks["redis"] = probe(ctx, h.redis)
		if checks["redis"].Status != "ok" {
			checks["redis"].Status = "degraded"
		}
	}

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func probe(ctx context.Context, hc HealthChecker) *readinessCheck {
	start := time.Now()
	err := hc.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
	}
	return check
}

// Live 存活检查接口
// @Summary 存活检查
// @Description 检查服务是否存活
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
