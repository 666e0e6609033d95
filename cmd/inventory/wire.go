//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// 说明：
// 1. Wire在编译期生成依赖装配代码（wire_gen.go），零运行时开销
// 2. 运行 `wire gen ./cmd/inventory` 生成wire_gen.go
// 3. 同类型多实例（每个写操作一个独立的弹性防护）无法由Wire自动区分，
//    相关UseCase通过自定义Provider在内部构造各自的Guard
package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"

	appinv "github.com/xiebiao/retail-inventory/internal/application/inventory"
	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/config"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/messaging"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/retail-inventory/internal/interface/http/handler"
	"github.com/xiebiao/retail-inventory/internal/interface/http/middleware"
	"github.com/xiebiao/retail-inventory/pkg/mq"
)

// infrastructureSet 基础设施层依赖
var infrastructureSet = wire.NewSet(
	config.Load,     // 加载配置文件
	mysql.NewDB,     // 创建MySQL连接
	redis.NewClient, // 创建Redis连接
)

// repositorySet 仓储层依赖
var repositorySet = wire.NewSet(
	mysql.NewInventoryRepository,   // 库存仓储
	mysql.NewReservationRepository, // 预留仓储
	mysql.NewTxManager,             // 事务管理器
	wire.Bind(new(appinv.TxManager), new(*mysql.TxManager)),
)

// cacheSet 缓存与分布式锁依赖
var cacheSet = wire.NewSet(
	provideInventoryCache,
	provideDistributedLock,
	wire.Bind(new(appinv.Cache), new(*redis.InventoryCache)),
	wire.Bind(new(appinv.Locker), new(*redis.DistributedLock)),
)

// messagingSet 事件发布依赖
var messagingSet = wire.NewSet(
	provideMQPublisher,
	provideEventPublisher,
	wire.Bind(new(appinv.Publisher), new(*messaging.EventPublisher)),
)

// applicationSet 应用层依赖
// 每个写操作持有独立的熔断器，故自定义Provider内部构造Guard
var applicationSet = wire.NewSet(
	provideReserveUseCase,
	provideCommitUseCase,
	provideReleaseUseCase,
	provideReplenishUseCase,
	provideSweepUseCase,
	appinv.NewCreateInventoryUseCase,
	appinv.NewGetInventoryUseCase,
	appinv.NewFindLowStockUseCase,
)

// handlerSet HTTP处理器依赖
var handlerSet = wire.NewSet(
	handler.NewInventoryHandler,
)

func provideInventoryCache(cfg *config.Config, client *goredis.Client) *redis.InventoryCache {
	return redis.NewInventoryCache(client, cfg.Cache.TTL)
}

func provideDistributedLock(cfg *config.Config, client *goredis.Client) *redis.DistributedLock {
	return redis.NewDistributedLock(client, cfg.Cache.LockTTL)
}

func provideMQPublisher(cfg *config.Config) (*mq.Publisher, error) {
	return mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.Type)
}

func provideEventPublisher(publisher *mq.Publisher) *messaging.EventPublisher {
	return messaging.NewEventPublisher(publisher, 256)
}

func provideReserveUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager appinv.TxManager,
	cache appinv.Cache,
	publisher appinv.Publisher,
	cfg *config.Config,
) *appinv.ReserveStockUseCase {
	return appinv.NewReserveStockUseCase(repo, resRepo, txManager, cache, publisher,
		appinv.NewGuard("reserve", cfg.Resilience))
}

func provideCommitUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager appinv.TxManager,
	cache appinv.Cache,
	publisher appinv.Publisher,
	cfg *config.Config,
) *appinv.CommitStockUseCase {
	return appinv.NewCommitStockUseCase(repo, resRepo, txManager, cache, publisher,
		appinv.NewGuard("commit", cfg.Resilience))
}

func provideReleaseUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager appinv.TxManager,
	cache appinv.Cache,
	publisher appinv.Publisher,
	cfg *config.Config,
) *appinv.ReleaseReservationUseCase {
	return appinv.NewReleaseReservationUseCase(repo, resRepo, txManager, cache, publisher,
		appinv.NewGuard("release", cfg.Resilience))
}

func provideReplenishUseCase(
	repo domain.Repository,
	txManager appinv.TxManager,
	cache appinv.Cache,
	locker appinv.Locker,
	cfg *config.Config,
) *appinv.ReplenishStockUseCase {
	return appinv.NewReplenishStockUseCase(repo, txManager, cache, locker,
		appinv.NewGuard("replenish", cfg.Resilience))
}

func provideSweepUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager appinv.TxManager,
	cache appinv.Cache,
	publisher appinv.Publisher,
	cfg *config.Config,
) *appinv.ReleaseExpiredUseCase {
	return appinv.NewReleaseExpiredUseCase(repo, resRepo, txManager, cache, publisher,
		appinv.NewGuard("sweep", cfg.Resilience))
}

// provideGinEngine 创建并配置Gin引擎
func provideGinEngine(cfg *config.Config, invHandler *handler.InventoryHandler) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Tracing(), middleware.AccessLog(), middleware.Metrics())

	registerRoutes(r, invHandler)
	return r
}

// InitializeApp 初始化整个应用
// Wire会按依赖链生成装配代码：
// *gin.Engine ← *handler.InventoryHandler ← 各UseCase ← 仓储/缓存/发布器 ← *config.Config
func InitializeApp() (*gin.Engine, error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		cacheSet,
		messagingSet,
		applicationSet,
		handlerSet,
		provideGinEngine,
	)
	return nil, nil
}
