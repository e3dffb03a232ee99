package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"horror-nobel-api/pkg/logger"
)

// TraceIDHeader 响应中回传的 trace id
const TraceIDHeader = "X-Trace-ID"

// Trace otelgin 服务端 span
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把 trace_id/span_id 写入日志上下文并回传给调用方
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		if !sc.IsValid() {
			c.Next()
			return
		}
		traceID := sc.TraceID().String()
		c.Set("trace_id", traceID)

		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// StoryContext 路由带 :id 时把故事 ID 挂到日志上下文与当前 span
func StoryContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); id != "" {
			ctx := logger.WithStoryID(c.Request.Context(), id)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("story.id", id))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
