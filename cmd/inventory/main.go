package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appinv "github.com/xiebiao/retail-inventory/internal/application/inventory"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/config"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/messaging"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/retail-inventory/internal/interface/http/handler"
	"github.com/xiebiao/retail-inventory/internal/interface/http/middleware"
	"github.com/xiebiao/retail-inventory/pkg/logger"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
	"github.com/xiebiao/retail-inventory/pkg/mq"
	"github.com/xiebiao/retail-inventory/pkg/response"
	"github.com/xiebiao/retail-inventory/pkg/tracing"
)

// sweepInterval 过期预留回收周期
// 预留TTL是5分钟，1分钟扫一轮即可把回收延迟压在可接受范围内
const (
	sweepInterval  = time.Minute
	sweepBatchSize = 100
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志与指标
	if err := logger.Init(logger.Options{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	metrics.InitMetrics()

	// 3. 链路追踪（可选）
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer("retail-inventory", cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// 4. 基础设施连接
	db, err := mysql.NewDB(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	mqPublisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.Type)
	if err != nil {
		log.Fatalf("初始化消息队列失败: %v", err)
	}
	defer mqPublisher.Close()

	// 5. 依赖注入（手动装配）
	// Repository/Cache/Publisher ← UseCase ← Handler

	// 基础设施层
	invRepo := mysql.NewInventoryRepository(db)
	resRepo := mysql.NewReservationRepository(db)
	txManager := mysql.NewTxManager(db)
	cache := redis.NewInventoryCache(redisClient, cfg.Cache.TTL)
	locker := redis.NewDistributedLock(redisClient, cfg.Cache.LockTTL)
	publisher := messaging.NewEventPublisher(mqPublisher, 256)
	defer publisher.Close()

	// 弹性防护：每个写操作一个独立熔断器，
	// 预留路径的故障不会连带熔断提交/释放路径
	reserveGuard := appinv.NewGuard("reserve", cfg.Resilience)
	commitGuard := appinv.NewGuard("commit", cfg.Resilience)
	releaseGuard := appinv.NewGuard("release", cfg.Resilience)
	replenishGuard := appinv.NewGuard("replenish", cfg.Resilience)
	sweepGuard := appinv.NewGuard("sweep", cfg.Resilience)

	// 应用层
	reserveUseCase := appinv.NewReserveStockUseCase(invRepo, resRepo, txManager, cache, publisher, reserveGuard)
	commitUseCase := appinv.NewCommitStockUseCase(invRepo, resRepo, txManager, cache, publisher, commitGuard)
	releaseUseCase := appinv.NewReleaseReservationUseCase(invRepo, resRepo, txManager, cache, publisher, releaseGuard)
	replenishUseCase := appinv.NewReplenishStockUseCase(invRepo, txManager, cache, locker, replenishGuard)
	createUseCase := appinv.NewCreateInventoryUseCase(invRepo)
	getUseCase := appinv.NewGetInventoryUseCase(invRepo, cache)
	lowStockUseCase := appinv.NewFindLowStockUseCase(invRepo)
	sweepUseCase := appinv.NewReleaseExpiredUseCase(invRepo, resRepo, txManager, cache, publisher, sweepGuard)

	// 接口层
	invHandler := handler.NewInventoryHandler(
		reserveUseCase, commitUseCase, releaseUseCase, replenishUseCase,
		createUseCase, getUseCase, lowStockUseCase, sweepUseCase,
	)

	// 6. Gin引擎与路由
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Tracing(), middleware.AccessLog(), middleware.Metrics())

	registerRoutes(r, invHandler)

	// 7. 后台回收：周期性释放过期预留
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		runExpirySweeper(sweepCtx, sweepUseCase)
	}()

	// 8. 启动HTTP服务（优雅停机）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.L().Info("服务启动",
			zap.String("addr", srv.Addr),
			zap.String("mode", cfg.Server.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("收到停机信号，开始优雅停机")

	// 先停清扫再（由defer）关闭发布器：
	// 清扫轮次落库后还会发布事件，必须等在途的一轮执行完，
	// 否则事件可能写入已关闭的发布队列
	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("停机超时，强制退出", zap.Error(err))
	}
	logger.L().Info("服务已停止")
}

// registerRoutes 注册路由
func registerRoutes(r *gin.Engine, invHandler *handler.InventoryHandler) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// 库存行管理
		inventories := v1.Group("/inventory")
		{
			inventories.POST("", invHandler.CreateInventory)
			inventories.POST("/replenish", invHandler.ReplenishStock)
			inventories.POST("/replenish/bulk", invHandler.BulkReplenish)
		}

		// 门店视角的查询
		stores := v1.Group("/stores")
		{
			stores.GET("/:store_id/inventory", invHandler.GetStoreInventory)
			stores.GET("/:store_id/inventory/:sku", invHandler.GetInventory)
			stores.GET("/:store_id/low-stock", invHandler.FindLowStock)
		}

		// 预留生命周期
		reservations := v1.Group("/reservations")
		{
			reservations.POST("", invHandler.ReserveStock)
			reservations.POST("/:reservation_id/commit", invHandler.CommitStock)
			reservations.POST("/:reservation_id/release", invHandler.ReleaseReservation)
			reservations.POST("/sweep-expired", invHandler.SweepExpired)
		}
	}
}

// runExpirySweeper 周期回收过期预留
// 单轮失败只记录日志，下一轮继续；停机信号到达后立即退出
func runExpirySweeper(ctx context.Context, sweepUseCase *appinv.ReleaseExpiredUseCase) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := sweepUseCase.Execute(ctx, sweepBatchSize)
			if err != nil {
				logger.L().Error("过期预留回收失败", zap.Error(err))
				continue
			}
			if result.Scanned > 0 {
				logger.L().Info("过期预留回收完成",
					zap.Int("scanned", result.Scanned),
					zap.Int("released", result.Released),
					zap.Int("failed", result.Failed),
				)
			}
		}
	}
}
