// Package repository 定义数据访问层接口
package repository

// 分页默认值与上限
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination 分页参数
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// NewPagination 创建分页参数，越界值回落到默认
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 分页结果
type PagedResult[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// NewPagedResult 创建分页结果
func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	pages := 0
	if p.PageSize > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return &PagedResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: pages,
	}
}
