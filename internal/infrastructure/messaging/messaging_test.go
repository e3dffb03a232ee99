package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"horror-nobel-api/internal/config"
)

func TestCalculateBackoff(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := b.CalculateBackoff(tt.retry); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestBackoffFromConfig(t *testing.T) {
	b := BackoffFromConfig(config.BackoffConfig{Initial: 2 * time.Second})
	if b.Initial != 2*time.Second || b.Max != time.Minute || b.Multiplier != 2 {
		t.Fatalf("backoff = %+v", b)
	}
}

func TestConsumerGroupPrefix(t *testing.T) {
	if got := ConsumerGroupEmailWorker.WithPrefix("prod-"); got != "prod-cg-email-worker" {
		t.Fatalf("WithPrefix = %s", got)
	}
	if got := ConsumerGroupEmailWorker.WithPrefix(""); got != ConsumerGroupEmailWorker {
		t.Fatalf("WithPrefix empty = %s", got)
	}
}

func TestPublishAndConsumeEmailJob(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	consumer := NewConsumer(rdb, ConsumerConfig{
		Stream:       StreamEmailDelivery,
		Group:        ConsumerGroupEmailWorker,
		ConsumerName: "test-worker",
		BlockTimeout: 50 * time.Millisecond,
	})
	got := make(chan EmailJobMessage, 1)
	consumer.RegisterHandler(MessageTypeEmailJob, func(ctx context.Context, msg *Message) error {
		var job EmailJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		got <- job
		return nil
	})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer consumer.Stop()

	producer := NewProducer(rdb, 100)
	if _, err := producer.PublishEmailJob(ctx, &EmailJobMessage{JobID: "j1", StoryID: "s1", Email: "a@example.com"}); err != nil {
		t.Fatalf("PublishEmailJob: %v", err)
	}

	select {
	case job := <-got:
		if job.StoryID != "s1" || job.Email != "a@example.com" {
			t.Fatalf("job = %+v", job)
		}
	case <-ctx.Done():
		t.Fatal("email job was not consumed")
	}
}
