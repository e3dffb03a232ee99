package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// MessageHandler 消息处理函数，返回错误时消息留在 pending 中等待重试
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// Consumer 消费者组成员
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	// reclaimIdle 其他消费者持有超过该时长的消息会被接管
	reclaimIdle time.Duration

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
}

// NewConsumer 创建消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: max(5*time.Minute, cfg.Backoff.Max*2),
		handlers:    make(map[string]MessageHandler),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 确保消费者组存在并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费并等待当前消息处理完
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.running = false
	c.mu.Unlock()
	<-c.done
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	log := logger.FromContext(ctx)
	log.Info("consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)

	lastClaim := time.Now().Add(-c.cfg.ClaimInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		c.retryDue(ctx)
		if time.Since(lastClaim) >= c.cfg.ClaimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{string(c.cfg.Stream), ">"},
			Count:    10,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.process(ctx, xmsg)
			}
		}
	}
}

func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := otelTracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		logger.Error(ctx, "invalid stream message", err, "message_id", xmsg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "invalid").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	if msg.StoryID != "" {
		ctx = logger.WithStoryID(ctx, msg.StoryID)
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("story_id", msg.StoryID),
	)

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "unhandled").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "failed").Inc()
		if c.retryCount(ctx, xmsg.ID) >= c.cfg.RetryLimit {
			c.deadLetter(ctx, xmsg, err)
		}
		return
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "success").Inc()
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// retryCount 消息的投递次数
func (c *Consumer) retryCount(ctx context.Context, id string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// deadLetter 写入死信流并确认
func (c *Consumer) deadLetter(ctx context.Context, xmsg redis.XMessage, cause error) {
	raw, _ := xmsg.Values["data"].(string)
	logger.Warn(ctx, "message moved to DLQ", "message_id", xmsg.ID, "error", cause.Error())

	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{
			"original_stream": string(c.cfg.Stream),
			"data":            raw,
			"error":           cause.Error(),
			"failed_at":       time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ", err, "message_id", xmsg.ID)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "dead_letter").Inc()
	c.ack(ctx, xmsg.ID)
}

// claim 接管消息：超过重试上限的直接进死信，其余重新处理
func (c *Consumer) claim(ctx context.Context, p redis.XPendingExt, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", p.ID)
		return
	}
	for _, xmsg := range claimed {
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.deadLetter(ctx, xmsg, fmt.Errorf("message exceeded max retries"))
			continue
		}
		c.process(ctx, xmsg)
	}
}

func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    20,
		Consumer: consumer,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return nil
	}
	return pending
}

// retryDue 重试本消费者名下已过退避期的消息
func (c *Consumer) retryDue(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.claim(ctx, p, 0)
			continue
		}
		backoff := c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle < backoff {
			continue
		}
		c.claim(ctx, p, backoff)
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p, c.reclaimIdle)
	}
}

// Monitor 定期上报积压量，死信超过阈值时告警
func (c *Consumer) Monitor(ctx context.Context, interval time.Duration, dlqThreshold int64) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if summary, err := c.client.XPending(ctx, string(c.cfg.Stream), string(c.cfg.Group)).Result(); err == nil {
				metrics.RedisStreamLag.WithLabelValues(string(c.cfg.Stream), string(c.cfg.Group)).Set(float64(summary.Count))
			}
			n, err := c.client.XLen(ctx, c.cfg.Stream.DLQStream()).Result()
			if err == nil && n > dlqThreshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", c.cfg.Stream.DLQStream(), "count", n)
			}
		}
	}
}
