package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	apperrors "horror-nobel-api/pkg/errors"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stories.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoryRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(openTestDB(t))

	s := entity.NewStory(entity.QuizAnswers{"q1": "a", "q2": "c"}, "冒頭")
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.AppendTurn(entity.RoleUser, "逃げる")
	s.Complete("完成稿")
	s.Email = "reader@example.com"
	s.AudioURLs = []string{"/static/audio/a.mp3"}
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != entity.StoryStatusCompleted || got.Novel != "完成稿" || got.QuizAnswers["q2"] != "c" {
		t.Fatalf("story = %+v", got)
	}
	if len(got.ChatHistory) != 2 || got.ChatHistory[1].Role != entity.RoleUser {
		t.Fatalf("history = %+v", got.ChatHistory)
	}
	if len(got.AudioURLs) != 1 {
		t.Fatalf("audio = %v", got.AudioURLs)
	}
}

func TestStoryRepositoryNotFound(t *testing.T) {
	repo := NewStoryRepository(openTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	if !apperrors.ErrStoryNotFound.Is(err) {
		t.Fatalf("err = %v", err)
	}
	if err := repo.Update(context.Background(), &entity.Story{ID: "missing"}); !apperrors.ErrStoryNotFound.Is(err) {
		t.Fatalf("Update err = %v", err)
	}
}

func TestStoryRepositoryEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(openTestDB(t))

	a := entity.NewStory(entity.QuizAnswers{"q1": "a"}, "a")
	a.Email = "x@example.com"
	b := entity.NewStory(entity.QuizAnswers{"q1": "b"}, "b")
	for _, s := range []*entity.Story{a, b} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	used, err := repo.IsEmailUsed(ctx, "x@example.com", b.ID)
	if err != nil || !used {
		t.Fatalf("IsEmailUsed = %v, %v", used, err)
	}
	used, err = repo.IsEmailUsed(ctx, "x@example.com", a.ID)
	if err != nil || used {
		t.Fatalf("IsEmailUsed excluding self = %v, %v", used, err)
	}

	page, err := repo.ListByEmail(ctx, "x@example.com", repository.NewPagination(1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != a.ID {
		t.Fatalf("page = %+v", page)
	}
}
