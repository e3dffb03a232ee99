package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	apperrors "horror-nobel-api/pkg/errors"
)

const storiesCollection = "stories"

// storyDoc stories 集合文档，_id 即故事 UUID
type storyDoc struct {
	ID          string            `bson:"_id"`
	QuizAnswers map[string]string `bson:"quiz_answers"`
	ChatHistory []entity.ChatTurn `bson:"chat_history"`
	Status      string            `bson:"status"`
	Novel       string            `bson:"novel,omitempty"`
	Email       string            `bson:"email,omitempty"`
	AudioURLs   []string          `bson:"audio_urls,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toDoc(s *entity.Story) *storyDoc {
	return &storyDoc{
		ID:          s.ID,
		QuizAnswers: s.QuizAnswers,
		ChatHistory: s.ChatHistory,
		Status:      string(s.Status),
		Novel:       s.Novel,
		Email:       s.Email,
		AudioURLs:   s.AudioURLs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (d *storyDoc) toEntity() *entity.Story {
	return &entity.Story{
		ID:          d.ID,
		QuizAnswers: d.QuizAnswers,
		ChatHistory: d.ChatHistory,
		Status:      entity.StoryStatus(d.Status),
		Novel:       d.Novel,
		Email:       d.Email,
		AudioURLs:   d.AudioURLs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func ensureStoryIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_email_created").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}
	_, err := db.Collection(storiesCollection).Indexes().CreateMany(ctx, indexes)
	return err
}

type StoryRepository struct {
	coll *mongo.Collection
}

func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{coll: client.db.Collection(storiesCollection)}
}

var _ repository.StoryRepository = (*StoryRepository)(nil)

func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "mongo.StoryRepository.Create")
	defer span.End()

	if _, err := r.coll.InsertOne(ctx, toDoc(story)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "mongo.StoryRepository.GetByID")
	defer span.End()

	var doc storyDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrStoryNotFound.WithDetail(id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return doc.toEntity(), nil
}

func (r *StoryRepository) Update(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "mongo.StoryRepository.Update")
	defer span.End()

	story.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": story.ID}, toDoc(story))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrStoryNotFound.WithDetail(story.ID)
	}
	return nil
}

func (r *StoryRepository) ListByEmail(ctx context.Context, email string, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "mongo.StoryRepository.ListByEmail")
	defer span.End()

	filter := bson.M{"email": email}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(pagination.Offset())).
		SetLimit(int64(pagination.Limit()))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer cur.Close(ctx)

	var docs []storyDoc
	if err := cur.All(ctx, &docs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode stories: %w", err)
	}
	items := make([]*entity.Story, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toEntity())
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

func (r *StoryRepository) IsEmailUsed(ctx context.Context, email, excludeID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "mongo.StoryRepository.IsEmailUsed")
	defer span.End()

	filter := bson.M{"email": email}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}
