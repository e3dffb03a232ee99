// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"horror-nobel-api/internal/domain/entity"
)

// StoryRepository 故事存储。GetByID 在记录不存在时返回 ErrStoryNotFound。
type StoryRepository interface {
	Create(ctx context.Context, story *entity.Story) error
	GetByID(ctx context.Context, id string) (*entity.Story, error)
	Update(ctx context.Context, story *entity.Story) error
	ListByEmail(ctx context.Context, email string, pagination Pagination) (*PagedResult[*entity.Story], error)
	// IsEmailUsed 该邮箱是否已有已发送的故事，excludeID 不计入
	IsEmailUsed(ctx context.Context, email, excludeID string) (bool, error)
}
