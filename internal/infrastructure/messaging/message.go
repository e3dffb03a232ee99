// Package messaging 提供基于 Redis Streams 的任务队列
package messaging

import (
	"encoding/json"
	"time"

	"horror-nobel-api/internal/config"
)

// Message 流消息信封
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StoryID   string            `json:"story_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, storyID string, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		StoryID:   storyID,
		Payload:   b,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SetMetadata 设置元数据，空值忽略
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流名称
type Stream string

// StreamEmailDelivery 成稿 PDF 邮件投递
const StreamEmailDelivery Stream = "stream:story:email"

// DLQStream 对应的死信流
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组
type ConsumerGroup string

// ConsumerGroupEmailWorker 邮件投递 worker
const ConsumerGroupEmailWorker ConsumerGroup = "cg-email-worker"

// WithPrefix 加上配置的组名前缀
func (g ConsumerGroup) WithPrefix(prefix string) ConsumerGroup {
	if prefix == "" {
		return g
	}
	return ConsumerGroup(prefix + string(g))
}

// MessageTypeEmailJob 邮件任务类型
const MessageTypeEmailJob = "email_job"

// EmailJobMessage 邮件投递任务
type EmailJobMessage struct {
	JobID   string `json:"job_id"`
	StoryID string `json:"story_id"`
	Email   string `json:"email"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// BackoffFromConfig 由配置构造退避参数，缺省项使用默认值
func BackoffFromConfig(c config.BackoffConfig) BackoffConfig {
	b := DefaultBackoffConfig()
	if c.Initial > 0 {
		b.Initial = c.Initial
	}
	if c.Max > 0 {
		b.Max = c.Max
	}
	if c.Multiplier > 1 {
		b.Multiplier = c.Multiplier
	}
	return b
}

// CalculateBackoff 计算第 retryCount 次重试前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
