package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/pkg/logger"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

// ReleaseExpiredUseCase 过期预留清扫用例
//
// 设计说明：
// 1. EXPIRED是惰性派生状态：过期的ACTIVE预留从过期那一刻起就
//    不能提交了，清扫只负责把占用的库存还回available并固化状态
// 2. 逐条处理、逐条事务：单条失败（如版本冲突）不影响其他条，
//    失败的留给下一轮清扫（清扫天然幂等）
// 3. limit限制单批规模，调度器外置（cron/定时goroutine）
type ReleaseExpiredUseCase struct {
	repo      domain.Repository
	resRepo   domain.ReservationRepository
	txManager TxManager
	cache     Cache
	publisher Publisher
	guard     *Guard
}

// NewReleaseExpiredUseCase 创建清扫用例
func NewReleaseExpiredUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager TxManager,
	cache Cache,
	publisher Publisher,
	guard *Guard,
) *ReleaseExpiredUseCase {
	return &ReleaseExpiredUseCase{
		repo:      repo,
		resRepo:   resRepo,
		txManager: txManager,
		cache:     cache,
		publisher: publisher,
		guard:     guard,
	}
}

// ReleaseExpiredResult 单轮清扫结果
type ReleaseExpiredResult struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Failed   int `json:"failed"`
}

// Execute 执行一轮清扫
func (uc *ReleaseExpiredUseCase) Execute(ctx context.Context, limit int) (*ReleaseExpiredResult, error) {
	if limit <= 0 {
		limit = 100
	}

	expired, err := uc.resRepo.FindExpiredBefore(ctx, time.Now(), limit)
	if err != nil {
		return nil, toAppError(err)
	}

	result := &ReleaseExpiredResult{Scanned: len(expired)}

	for _, res := range expired {
		if err := uc.releaseOne(ctx, res.ReservationID); err != nil {
			result.Failed++
			logger.L().Warn("过期预留回收失败，留待下轮清扫",
				zap.String("reservation_id", res.ReservationID.String()),
				zap.Error(err))
			continue
		}
		result.Released++
		metrics.IncCounter(metrics.ReservationsExpiredTotal)
	}

	if result.Released > 0 {
		logger.L().Info("过期预留清扫完成",
			zap.Int("scanned", result.Scanned),
			zap.Int("released", result.Released),
			zap.Int("failed", result.Failed))
	}

	return result, nil
}

// releaseOne 回收单条过期预留（独立事务）
// 事务内重新加载预留：查询到回收之间可能已被提交或显式释放
func (uc *ReleaseExpiredUseCase) releaseOne(ctx context.Context, reservationID uuid.UUID) error {
	var (
		events  []domain.DomainEvent
		storeID uuid.UUID
		sku     domain.ProductSku
	)

	err := uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			res, err := uc.resRepo.FindByID(txCtx, reservationID)
			if err != nil {
				return toAppError(err)
			}
			// 已不是ACTIVE或实际上没过期（时钟边界），跳过
			if res.Status != domain.StatusActive || !res.IsExpired() {
				return nil
			}

			inv, err := uc.repo.FindByStoreAndSku(txCtx, res.StoreID, res.ProductSku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version

			if err := inv.ReleaseReservation(res.ReservationID, res.Quantity, "预留过期自动回收"); err != nil {
				return toAppError(err)
			}
			if err := res.MarkExpired(); err != nil {
				return toAppError(err)
			}

			if err := uc.repo.Save(txCtx, inv, expectedVersion); err != nil {
				return toAppError(err)
			}
			if err := uc.resRepo.Save(txCtx, res); err != nil {
				return toAppError(err)
			}

			storeID = res.StoreID
			sku = res.ProductSku
			events = inv.Events()
			inv.ClearEvents()
			return nil
		})
	})
	if err != nil {
		return err
	}

	if len(events) > 0 {
		uc.cache.Invalidate(ctx, storeID, sku)
		uc.publisher.Publish(ctx, events)
	}
	return nil
}
