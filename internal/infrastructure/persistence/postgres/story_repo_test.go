package postgres

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"horror-nobel-api/internal/domain/entity"
)

func sampleStory() *entity.Story {
	s := entity.NewStory(entity.QuizAnswers{"q1": "a", "q2": "c"}, "冒頭")
	s.AppendTurn(entity.RoleUser, "扉を開ける")
	s.AppendTurn(entity.RoleModel, "廊下に誰かいる")
	s.Complete("【消えた灯】\n\n完成稿")
	s.Email = "reader@example.com"
	s.AudioURLs = []string{"/static/audio/a_0.mp3", "/static/audio/a_1.mp3"}
	return s
}

// driverRoundTrip 模拟写入数据库再读出：jsonb 与 text[] 列都经过 Value/Scan
func driverRoundTrip(t *testing.T, rec *storyRecord) *storyRecord {
	t.Helper()
	out := *rec

	for _, col := range []*datatypes.JSON{&out.QuizAnswers, &out.ChatHistory} {
		v, err := col.Value()
		if err != nil {
			t.Fatalf("json Value: %v", err)
		}
		var back datatypes.JSON
		if err := back.Scan(v); err != nil {
			t.Fatalf("json Scan: %v", err)
		}
		*col = back
	}

	v, err := rec.AudioURLs.Value()
	if err != nil {
		t.Fatalf("array Value: %v", err)
	}
	var urls pq.StringArray
	if err := urls.Scan(v); err != nil {
		t.Fatalf("array Scan: %v", err)
	}
	out.AudioURLs = urls
	return &out
}

func TestStoryRecordRoundTrip(t *testing.T) {
	s := sampleStory()
	rec, err := toRecord(s)
	if err != nil {
		t.Fatalf("toRecord: %v", err)
	}
	if rec.TableName() != "stories" || rec.Status != "completed" {
		t.Fatalf("record = %+v", rec)
	}

	got, err := driverRoundTrip(t, rec).toEntity()
	if err != nil {
		t.Fatalf("toEntity: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, s)
	}
}

func TestStoryRecordEmptyColumns(t *testing.T) {
	rec := &storyRecord{ID: "id-1", Status: "in_progress", CreatedAt: time.Unix(0, 0).UTC()}
	got, err := rec.toEntity()
	if err != nil {
		t.Fatalf("toEntity: %v", err)
	}
	if got.QuizAnswers != nil || got.ChatHistory != nil || len(got.AudioURLs) != 0 {
		t.Fatalf("story = %+v", got)
	}
	if got.Status != entity.StoryStatusInProgress {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestStoryRecordRejectsCorruptJSON(t *testing.T) {
	rec := &storyRecord{ID: "id-1", ChatHistory: datatypes.JSON(`[{"role":`)}
	if _, err := rec.toEntity(); err == nil || !strings.Contains(err.Error(), "chat history") {
		t.Fatalf("err = %v", err)
	}
}
