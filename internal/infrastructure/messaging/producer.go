package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/tracer"
)

var otelTracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := otelTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", id))
	return id, nil
}

// PublishEmailJob 发布邮件投递任务，携带请求与追踪 ID 以便 worker 串联日志
func (p *Producer) PublishEmailJob(ctx context.Context, job *EmailJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, MessageTypeEmailJob, job.StoryID, job)
	if err != nil {
		return "", err
	}
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMetadata("request_id", reqID)
	}
	msg.SetMetadata("trace_id", tracer.TraceID(ctx))
	return p.Publish(ctx, StreamEmailDelivery, msg)
}

// EnqueueEmail 为故事创建一条邮件任务，返回流消息 ID
func (p *Producer) EnqueueEmail(ctx context.Context, storyID, email string) (string, error) {
	return p.PublishEmailJob(ctx, &EmailJobMessage{
		JobID:   uuid.NewString(),
		StoryID: storyID,
		Email:   email,
	})
}
