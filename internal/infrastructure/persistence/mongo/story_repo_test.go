package mongo

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"horror-nobel-api/internal/domain/entity"
)

func TestStoryDocRoundTrip(t *testing.T) {
	s := entity.NewStory(entity.QuizAnswers{"q1": "a"}, "冒頭")
	s.AppendTurn(entity.RoleUser, "逃げる")
	s.Complete("完成稿")
	s.Email = "reader@example.com"
	s.AudioURLs = []string{"/static/audio/a_0.mp3"}
	// BSON 日期精度为毫秒
	s.CreatedAt = s.CreatedAt.Truncate(time.Millisecond)
	s.UpdatedAt = s.UpdatedAt.Truncate(time.Millisecond)

	raw, err := bson.Marshal(toDoc(s))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var d storyDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got := d.toEntity()

	if !got.CreatedAt.Equal(s.CreatedAt) || !got.UpdatedAt.Equal(s.UpdatedAt) {
		t.Fatalf("timestamps = %v %v, want %v %v", got.CreatedAt, got.UpdatedAt, s.CreatedAt, s.UpdatedAt)
	}
	got.CreatedAt, got.UpdatedAt = s.CreatedAt, s.UpdatedAt
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, s)
	}
}

func TestStoryDocOmitsEmptyOptionalFields(t *testing.T) {
	s := entity.NewStory(entity.QuizAnswers{"q1": "a"}, "冒頭")
	raw, err := bson.Marshal(toDoc(s))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	doc := bson.Raw(raw)
	for _, key := range []string{"novel", "email", "audio_urls"} {
		if _, err := doc.LookupErr(key); err == nil {
			t.Fatalf("field %q should be omitted", key)
		}
	}
	if id := doc.Lookup("_id").StringValue(); id != s.ID {
		t.Fatalf("_id = %q", id)
	}
}
