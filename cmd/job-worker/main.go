// Package main 邮件投递 worker 入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"horror-nobel-api/internal/config"
	einocallback "horror-nobel-api/internal/infrastructure/eino/callback"
	"horror-nobel-api/internal/infrastructure/messaging"
	"horror-nobel-api/internal/wire"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Environment: cfg.App.Env,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einocallback.Init()

	w, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	redisClient, ok := w.Redis.Get()
	if !ok {
		logger.Fatal(ctx, "job-worker requires redis", fmt.Errorf("%s", w.Redis.Reason()))
	}

	stream := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamEmailDelivery,
		Group:         messaging.ConsumerGroupEmailWorker.WithPrefix(stream.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  stream.BlockTimeout,
		ClaimInterval: stream.ClaimInterval,
		RetryLimit:    stream.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(stream.RetryBackoff),
	})

	consumer.RegisterHandler(messaging.MessageTypeEmailJob, func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.EmailJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		ctx = logger.WithStoryID(ctx, job.StoryID)
		if _, err := w.Service.Deliver(ctx, job.StoryID, job.Email); err != nil {
			return err
		}
		logger.Info(ctx, "story email delivered", "job_id", job.JobID)
		return nil
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.Monitor(ctx, 0, 0)

	logger.Info(ctx, "job-worker started",
		"stream", string(messaging.StreamEmailDelivery),
		"group", string(messaging.ConsumerGroupEmailWorker.WithPrefix(stream.ConsumerGroupPrefix)),
	)

	<-ctx.Done()
	logger.Info(context.Background(), "job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
