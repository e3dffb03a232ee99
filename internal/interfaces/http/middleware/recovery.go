// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"horror-nobel-api/internal/interfaces/http/dto"
	apperrors "horror-nobel-api/pkg/errors"
	"horror-nobel-api/pkg/logger"
)

// Recovery 捕获 panic，记录堆栈后按统一错误结构返回 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"method", c.Request.Method,
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			dto.AppError(c, apperrors.ErrInternalError)
			c.Abort()
		}()

		c.Next()
	}
}
