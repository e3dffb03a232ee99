package dto

import (
	"github.com/gin-gonic/gin"

	"horror-nobel-api/internal/domain/repository"
)

// ListStoriesQuery GET /v1/stories 的查询参数
type ListStoriesQuery struct {
	Email    string `form:"email" binding:"required"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// Pagination 越界的页码与条数回落到默认值
func (q ListStoriesQuery) Pagination() repository.Pagination {
	return repository.NewPagination(q.Page, q.PageSize)
}

// BindStoryID 路径中的故事 ID
func BindStoryID(c *gin.Context) string {
	return c.Param("id")
}
