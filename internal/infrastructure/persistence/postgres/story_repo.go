package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	apperrors "horror-nobel-api/pkg/errors"
)

// storyRecord stories 表结构；问卷与对话历史以 jsonb 保存
type storyRecord struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	QuizAnswers datatypes.JSON `gorm:"type:jsonb;not null"`
	ChatHistory datatypes.JSON `gorm:"type:jsonb;not null"`
	Status      string         `gorm:"type:varchar(16);not null;index"`
	Novel       string         `gorm:"type:text"`
	Email       string         `gorm:"type:varchar(320);index"`
	AudioURLs   pq.StringArray `gorm:"type:text[]"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (storyRecord) TableName() string {
	return "stories"
}

func toRecord(s *entity.Story) (*storyRecord, error) {
	answers, err := json.Marshal(s.QuizAnswers)
	if err != nil {
		return nil, fmt.Errorf("marshal quiz answers: %w", err)
	}
	history, err := json.Marshal(s.ChatHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal chat history: %w", err)
	}
	return &storyRecord{
		ID:          s.ID,
		QuizAnswers: datatypes.JSON(answers),
		ChatHistory: datatypes.JSON(history),
		Status:      string(s.Status),
		Novel:       s.Novel,
		Email:       s.Email,
		AudioURLs:   pq.StringArray(s.AudioURLs),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

func (r *storyRecord) toEntity() (*entity.Story, error) {
	s := &entity.Story{
		ID:        r.ID,
		Status:    entity.StoryStatus(r.Status),
		Novel:     r.Novel,
		Email:     r.Email,
		AudioURLs: []string(r.AudioURLs),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.QuizAnswers) > 0 {
		if err := json.Unmarshal(r.QuizAnswers, &s.QuizAnswers); err != nil {
			return nil, fmt.Errorf("unmarshal quiz answers: %w", err)
		}
	}
	if len(r.ChatHistory) > 0 {
		if err := json.Unmarshal(r.ChatHistory, &s.ChatHistory); err != nil {
			return nil, fmt.Errorf("unmarshal chat history: %w", err)
		}
	}
	return s, nil
}

type StoryRepository struct {
	client *Client
}

func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

var _ repository.StoryRepository = (*StoryRepository)(nil)

func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Create")
	defer span.End()

	rec, err := toRecord(story)
	if err != nil {
		return err
	}
	if err := getDB(ctx, r.client.db).Create(rec).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.GetByID")
	defer span.End()

	var rec storyRecord
	if err := getDB(ctx, r.client.db).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStoryNotFound.WithDetail(id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return rec.toEntity()
}

func (r *StoryRepository) Update(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Update")
	defer span.End()

	rec, err := toRecord(story)
	if err != nil {
		return err
	}
	res := getDB(ctx, r.client.db).Model(&storyRecord{}).Where("id = ?", story.ID).Updates(map[string]any{
		"quiz_answers": rec.QuizAnswers,
		"chat_history": rec.ChatHistory,
		"status":       rec.Status,
		"novel":        rec.Novel,
		"email":        rec.Email,
		"audio_urls":   rec.AudioURLs,
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update story: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrStoryNotFound.WithDetail(story.ID)
	}
	return nil
}

func (r *StoryRepository) ListByEmail(ctx context.Context, email string, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.ListByEmail")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&storyRecord{}).Where("email = ?", email)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}

	var recs []storyRecord
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&recs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	items := make([]*entity.Story, 0, len(recs))
	for i := range recs {
		s, err := recs[i].toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

func (r *StoryRepository) IsEmailUsed(ctx context.Context, email, excludeID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.IsEmailUsed")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&storyRecord{}).Where("email = ?", email)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}
