package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// 仅当令牌匹配时删除，避免误删他人持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SETNX 的互斥锁
type Locker struct {
	client *Client
}

// NewLocker 创建锁
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// TryLock 尝试加锁，成功时返回释放函数
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.TryLock")
	defer span.End()
	span.SetAttributes(
		attribute.String("lock.key", key),
		attribute.Int64("lock.ttl_ms", ttl.Milliseconds()),
	)

	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}
