// Package redis 提供 Redis 缓存、锁与客户端封装
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"horror-nobel-api/internal/config"
)

var tracer = otel.Tracer("redis")

const connectTimeout = 5 * time.Second

// Client 共享的 go-redis 连接，供音频 URL 缓存、完成锁与邮件队列使用
type Client struct {
	rdb  *redis.Client
	addr string
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 连接并 PING 一次，失败时关闭连接池
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr(), err)
	}
	return &Client{rdb: rdb, addr: cfg.Addr()}, nil
}

// NewClientFromRedis 包装已有连接，测试里配合 miniredis 使用
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, addr: rdb.Options().Addr}
}

// Redis 底层连接，Streams 生产者与消费者直接使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 供 /ready 使用
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()
	span.SetAttributes(attribute.String("redis.addr", c.addr))

	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}
