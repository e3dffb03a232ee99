// Package sqlite 提供单机部署用的 SQLite 故事存储
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	apperrors "horror-nobel-api/pkg/errors"
)

var tracer = otel.Tracer("sqlite")

const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id           TEXT PRIMARY KEY,
	quiz_answers TEXT NOT NULL,
	chat_history TEXT NOT NULL,
	status       TEXT NOT NULL,
	novel        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	audio_urls   TEXT NOT NULL DEFAULT '[]',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_email ON stories(email);
`

// DB SQLite 连接
type DB struct {
	conn *sqlx.DB
}

// Open 打开或创建数据库并建表
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 单写连接避免 SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close 关闭连接
func (db *DB) Close() error {
	return db.conn.Close()
}

// HealthCheck 健康检查
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

type storyRow struct {
	ID          string `db:"id"`
	QuizAnswers string `db:"quiz_answers"`
	ChatHistory string `db:"chat_history"`
	Status      string `db:"status"`
	Novel       string `db:"novel"`
	Email       string `db:"email"`
	AudioURLs   string `db:"audio_urls"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func toRow(s *entity.Story) (*storyRow, error) {
	answers, err := json.Marshal(s.QuizAnswers)
	if err != nil {
		return nil, fmt.Errorf("marshal quiz answers: %w", err)
	}
	history, err := json.Marshal(s.ChatHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal chat history: %w", err)
	}
	urls := s.AudioURLs
	if urls == nil {
		urls = []string{}
	}
	audio, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("marshal audio urls: %w", err)
	}
	return &storyRow{
		ID:          s.ID,
		QuizAnswers: string(answers),
		ChatHistory: string(history),
		Status:      string(s.Status),
		Novel:       s.Novel,
		Email:       s.Email,
		AudioURLs:   string(audio),
		CreatedAt:   s.CreatedAt.UnixNano(),
		UpdatedAt:   s.UpdatedAt.UnixNano(),
	}, nil
}

func (r *storyRow) toEntity() (*entity.Story, error) {
	s := &entity.Story{
		ID:        r.ID,
		Status:    entity.StoryStatus(r.Status),
		Novel:     r.Novel,
		Email:     r.Email,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.QuizAnswers), &s.QuizAnswers); err != nil {
		return nil, fmt.Errorf("unmarshal quiz answers: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ChatHistory), &s.ChatHistory); err != nil {
		return nil, fmt.Errorf("unmarshal chat history: %w", err)
	}
	if err := json.Unmarshal([]byte(r.AudioURLs), &s.AudioURLs); err != nil {
		return nil, fmt.Errorf("unmarshal audio urls: %w", err)
	}
	if len(s.AudioURLs) == 0 {
		s.AudioURLs = nil
	}
	return s, nil
}

// StoryRepository SQLite 故事仓储
type StoryRepository struct {
	db *DB
}

func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

var _ repository.StoryRepository = (*StoryRepository)(nil)

func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "sqlite.StoryRepository.Create")
	defer span.End()

	row, err := toRow(story)
	if err != nil {
		return err
	}
	_, err = r.db.conn.NamedExecContext(ctx, `
		INSERT INTO stories (id, quiz_answers, chat_history, status, novel, email, audio_urls, created_at, updated_at)
		VALUES (:id, :quiz_answers, :chat_history, :status, :novel, :email, :audio_urls, :created_at, :updated_at)`, row)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "sqlite.StoryRepository.GetByID")
	defer span.End()

	var row storyRow
	if err := r.db.conn.GetContext(ctx, &row, "SELECT * FROM stories WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrStoryNotFound.WithDetail(id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return row.toEntity()
}

func (r *StoryRepository) Update(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "sqlite.StoryRepository.Update")
	defer span.End()

	story.UpdatedAt = time.Now().UTC()
	row, err := toRow(story)
	if err != nil {
		return err
	}
	res, err := r.db.conn.NamedExecContext(ctx, `
		UPDATE stories SET quiz_answers = :quiz_answers, chat_history = :chat_history, status = :status,
			novel = :novel, email = :email, audio_urls = :audio_urls, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrStoryNotFound.WithDetail(story.ID)
	}
	return nil
}

func (r *StoryRepository) ListByEmail(ctx context.Context, email string, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "sqlite.StoryRepository.ListByEmail")
	defer span.End()

	var total int64
	if err := r.db.conn.GetContext(ctx, &total, "SELECT COUNT(*) FROM stories WHERE email = ?", email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}

	var rows []storyRow
	if err := r.db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM stories WHERE email = ? ORDER BY created_at DESC LIMIT ? OFFSET ?",
		email, pagination.Limit(), pagination.Offset()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	items := make([]*entity.Story, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

func (r *StoryRepository) IsEmailUsed(ctx context.Context, email, excludeID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "sqlite.StoryRepository.IsEmailUsed")
	defer span.End()

	var n int
	if err := r.db.conn.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM stories WHERE email = ? AND id <> ?", email, excludeID); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}
