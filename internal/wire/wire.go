//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		ServiceSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化邮件投递 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		ServiceSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// StoreSet 故事存储提供者集合
var StoreSet = wire.NewSet(
	ProvideStoryStore,
	ProvideStoryRepository,
)

// RedisSet Redis 及其衍生协作者
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideLocker,
	ProvideURLCache,
	ProvideEmailQueue,
)

// ServiceSet 应用服务提供者集合
var ServiceSet = wire.NewSet(
	ProvideCatalog,
	ProvideGenerator,
	ProvideSynthesizer,
	ProvideAudioStore,
	ProvideNarration,
	ProvideMailer,
	ProvideRenderer,
	ProvideStoryService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideStoryHandler,
	ProvideHealthHandler,
	ProvideRouterHandlers,
	router.New,
)
