// Package mongo 提供 MongoDB 故事存储实现
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"

	"horror-nobel-api/internal/config"
)

var tracer = otel.Tracer("mongo")

// Client MongoDB 客户端
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient 连接并校验 MongoDB
func NewClient(ctx context.Context, cfg *config.MongoConfig) (*Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	c := &Client{client: cli, db: cli.Database(cfg.Database)}
	if err := ensureStoryIndexes(ctx, c.db); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return c, nil
}

// Database 返回数据库句柄
func (c *Client) Database() *mongo.Database {
	return c.db
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "mongo.HealthCheck")
	defer span.End()
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close 断开连接
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
