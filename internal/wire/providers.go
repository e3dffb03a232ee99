// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"

	"horror-nobel-api/internal/application/narration"
	"horror-nobel-api/internal/application/narrative"
	appstory "horror-nobel-api/internal/application/story"
	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/domain/repository"
	"horror-nobel-api/internal/domain/service"
	"horror-nobel-api/internal/infrastructure/llm"
	"horror-nobel-api/internal/infrastructure/mail"
	"horror-nobel-api/internal/infrastructure/messaging"
	"horror-nobel-api/internal/infrastructure/pdf"
	"horror-nobel-api/internal/infrastructure/persistence/mongo"
	"horror-nobel-api/internal/infrastructure/persistence/postgres"
	"horror-nobel-api/internal/infrastructure/persistence/redis"
	"horror-nobel-api/internal/infrastructure/persistence/sqlite"
	"horror-nobel-api/internal/infrastructure/storage"
	"horror-nobel-api/internal/infrastructure/tts"
	"horror-nobel-api/internal/interfaces/http/handler"
	"horror-nobel-api/internal/interfaces/http/router"
	"horror-nobel-api/internal/workflow/chain"
	"horror-nobel-api/pkg/logger"
)

// StoryStore 按 database.driver 选出的故事存储
type StoryStore struct {
	Driver string
	Repo   repository.StoryRepository
	Health handler.HealthChecker
}

// Worker 邮件投递 worker 的依赖
type Worker struct {
	Service *appstory.Service
	Redis   service.Availability[*redis.Client]
}

// ProvideStoryStore 提供故事存储
func ProvideStoryStore(ctx context.Context, cfg *config.Config) (*StoryStore, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := &StoryStore{Driver: config.DriverPostgres, Repo: postgres.NewStoryRepository(client), Health: client}
		return store, func() { _ = client.Close() }, nil
	case config.DriverMongo:
		client, err := mongo.NewClient(ctx, &cfg.Database.Mongo)
		if err != nil {
			return nil, nil, err
		}
		store := &StoryStore{Driver: config.DriverMongo, Repo: mongo.NewStoryRepository(client), Health: client}
		return store, func() { _ = client.Close() }, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		store := &StoryStore{Driver: config.DriverSQLite, Repo: sqlite.NewStoryRepository(db), Health: db}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}
}

// ProvideStoryRepository 提供故事仓储接口
func ProvideStoryRepository(store *StoryStore) repository.StoryRepository {
	return store.Repo
}

// ProvideRedisClient 提供可选的 Redis 客户端，不可达时不阻塞启动
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (service.Availability[*redis.Client], func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return service.Unavailable[*redis.Client]("redis disabled"), func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, cache/lock/queue disabled", "error", err.Error())
		return service.Unavailable[*redis.Client](err.Error()), func() {}, nil
	}
	return service.Available(client), func() { _ = client.Close() }, nil
}

// ProvideLocker 提供故事完成锁
func ProvideLocker(rc service.Availability[*redis.Client]) service.Availability[appstory.Locker] {
	return service.Map(rc, func(c *redis.Client) appstory.Locker {
		return redis.NewLocker(c)
	})
}

// ProvideURLCache 提供音频 URL 缓存
func ProvideURLCache(rc service.Availability[*redis.Client]) service.Availability[narration.URLCache] {
	return service.Map(rc, func(c *redis.Client) narration.URLCache {
		return redis.NewCache(c)
	})
}

// ProvideEmailQueue 提供邮件任务队列
func ProvideEmailQueue(cfg *config.Config, rc service.Availability[*redis.Client]) service.Availability[appstory.EmailQueue] {
	if !cfg.Messaging.RedisStream.Enabled {
		return service.Unavailable[appstory.EmailQueue]("redis stream disabled")
	}
	return service.Map(rc, func(c *redis.Client) appstory.EmailQueue {
		return messaging.NewProducer(c.Redis(), cfg.Messaging.RedisStream.MaxLen)
	})
}

// ProvideGenerator 提供故事生成链
func ProvideGenerator(cfg *config.Config) service.Availability[appstory.Generator] {
	factory := llm.NewEinoFactory(cfg)
	return service.Map(factory.Availability(), func(f *llm.EinoFactory) appstory.Generator {
		return chain.NewStoryChain(f, cfg.LLM.DefaultProvider)
	})
}

// ProvideSynthesizer 提供语音合成
func ProvideSynthesizer(cfg *config.Config) service.Availability[narration.Synthesizer] {
	return service.Map(tts.NewSynthesizer(&cfg.TTS), func(s *tts.Synthesizer) narration.Synthesizer {
		return s
	})
}

// ProvideAudioStore 提供音频文件存储
func ProvideAudioStore(cfg *config.Config) (*storage.AudioStore, error) {
	return storage.NewAudioStore(&cfg.Storage.Audio)
}

// ProvideNarration 提供朗读服务
func ProvideNarration(
	cfg *config.Config,
	synth service.Availability[narration.Synthesizer],
	store *storage.AudioStore,
	cache service.Availability[narration.URLCache],
) *narration.Service {
	return narration.NewService(synth, store, cache, narration.Options{
		Voice:       cfg.TTS.Voice,
		Speed:       cfg.TTS.Speed,
		ChunkLimit:  cfg.TTS.ChunkLimit,
		Concurrency: cfg.TTS.Concurrency,
		CacheTTL:    cfg.Cache.Redis.AudioURLTTL,
	})
}

// ProvideMailer 提供邮件发送
func ProvideMailer(cfg *config.Config) service.Availability[mail.Sender] {
	return mail.NewSender(&cfg.Mail)
}

// ProvideRenderer 提供 PDF 排版
func ProvideRenderer(cfg *config.Config) *pdf.Renderer {
	return pdf.NewRenderer(&cfg.PDF)
}

// ProvideStoryService 提供故事服务
func ProvideStoryService(
	cfg *config.Config,
	repo repository.StoryRepository,
	gen service.Availability[appstory.Generator],
	catalog *narrative.Catalog,
	narr *narration.Service,
	renderer *pdf.Renderer,
	mailer service.Availability[mail.Sender],
	locker service.Availability[appstory.Locker],
	queue service.Availability[appstory.EmailQueue],
) *appstory.Service {
	return appstory.NewService(appstory.Deps{
		Repo:      repo,
		Generator: gen,
		Catalog:   catalog,
		Narration: narr,
		Renderer:  renderer,
		Mailer:    mailer,
		Locker:    locker,
		Queue:     queue,
	}, appstory.Options{
		TotalTurns:       cfg.Story.TotalTurns,
		StrictTurns:      cfg.Story.StrictTurns,
		MaxMessageLength: cfg.Story.MaxMessageLength,
		DevMode:          cfg.App.DevMode,
		MaskMailFailure:  cfg.Mail.TreatFailureAsSuccess,
		LockTTL:          cfg.Cache.Redis.LockTTL,
	})
}

// ProvideStoryHandler 提供故事处理器
func ProvideStoryHandler(svc *appstory.Service) *handler.StoryHandler {
	return handler.NewStoryHandler(svc)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(store *StoryStore, rc service.Availability[*redis.Client]) *handler.HealthHandler {
	var redisCheck handler.HealthChecker
	if c, ok := rc.Get(); ok {
		redisCheck = c
	}
	return handler.NewHealthHandler(store.Driver, store.Health, redisCheck)
}

// ProvideRouterHandlers 组装路由依赖
func ProvideRouterHandlers(story *handler.StoryHandler, health *handler.HealthHandler, audio *storage.AudioStore) router.Handlers {
	return router.Handlers{
		Story:       story,
		Health:      health,
		Audio:       audio.FileSystem(),
		AudioPrefix: audio.Prefix(),
	}
}

// ProvideCatalog 提供内置问卷
func ProvideCatalog() (*narrative.Catalog, error) {
	return narrative.DefaultCatalog()
}
