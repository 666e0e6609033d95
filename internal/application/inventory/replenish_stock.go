package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
	"github.com/xiebiao/retail-inventory/pkg/saga"
)

// bulkReplenishTimeout 整批补货的执行上限
// 必须小于分布式锁的TTL，否则锁过期后另一批补货可能并发进入
const bulkReplenishTimeout = 8 * time.Second

// ReplenishStockUseCase 补货用例
//
// 单行补货走乐观锁（与预留路径同一套并发控制）。
// 批量补货是管理操作，跨多条库存行：
//  1. 门店级Redis分布式锁互斥（两批补货同时跑会让对账无法解释）
//  2. Saga编排：每行一个步骤，第N行失败时逆序撤回前N-1行已补的量
type ReplenishStockUseCase struct {
	repo      domain.Repository
	txManager TxManager
	cache     Cache
	locker    Locker
	guard     *Guard
}

// NewReplenishStockUseCase 创建补货用例
func NewReplenishStockUseCase(
	repo domain.Repository,
	txManager TxManager,
	cache Cache,
	locker Locker,
	guard *Guard,
) *ReplenishStockUseCase {
	return &ReplenishStockUseCase{
		repo:      repo,
		txManager: txManager,
		cache:     cache,
		locker:    locker,
		guard:     guard,
	}
}

// ReplenishStockRequest 单行补货请求DTO
type ReplenishStockRequest struct {
	StoreID  uuid.UUID
	Sku      string
	Quantity int
	Reason   string
}

// ReplenishStockResponse 单行补货响应DTO
type ReplenishStockResponse struct {
	Success        bool `json:"success"`
	AvailableStock int  `json:"available_stock"`
	TotalStock     int  `json:"total_stock"`
}

// Execute 执行单行补货
func (uc *ReplenishStockUseCase) Execute(ctx context.Context, req ReplenishStockRequest) (*ReplenishStockResponse, error) {
	start := time.Now()

	sku, err := domain.NewProductSku(req.Sku)
	if err != nil {
		return nil, toAppError(err)
	}
	quantity, err := domain.NewQuantity(req.Quantity)
	if err != nil || quantity.IsZero() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	var available, total int

	err = uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			inv, err := uc.repo.FindByStoreAndSku(txCtx, req.StoreID, sku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version

			if err := inv.ReplenishStock(quantity, req.Reason); err != nil {
				return toAppError(err)
			}
			if err := uc.repo.Save(txCtx, inv, expectedVersion); err != nil {
				return toAppError(err)
			}

			available = inv.AvailableQuantity.Int()
			total = inv.TotalQuantity().Int()
			return nil
		})
	})

	if err != nil {
		observeOp("replenish", "failure", start)
		return nil, err
	}

	uc.cache.Invalidate(ctx, req.StoreID, sku)

	observeOp("replenish", "success", start)
	return &ReplenishStockResponse{
		Success:        true,
		AvailableStock: available,
		TotalStock:     total,
	}, nil
}

// BulkReplenishLine 批量补货的一行
type BulkReplenishLine struct {
	Sku      string
	Quantity int
}

// BulkReplenishRequest 批量补货请求DTO
type BulkReplenishRequest struct {
	StoreID uuid.UUID
	Lines   []BulkReplenishLine
	Reason  string
}

// BulkReplenishResponse 批量补货响应DTO
type BulkReplenishResponse struct {
	Success bool `json:"success"`
	Lines   int  `json:"lines"`
}

// ExecuteBulk 执行批量补货
//
// 全有或全无：任意一行失败（SKU不存在、数据异常）时，
// 已补的行通过Saga补偿撤回，整批报告失败
func (uc *ReplenishStockUseCase) ExecuteBulk(ctx context.Context, req BulkReplenishRequest) (*BulkReplenishResponse, error) {
	if len(req.Lines) == 0 {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	// 预校验所有行，有非法参数直接拒绝，不进入锁
	type checkedLine struct {
		sku      domain.ProductSku
		quantity domain.Quantity
	}
	lines := make([]checkedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		sku, err := domain.NewProductSku(line.Sku)
		if err != nil {
			return nil, toAppError(err)
		}
		quantity, err := domain.NewQuantity(line.Quantity)
		if err != nil || quantity.IsZero() {
			return nil, toAppError(domain.ErrInvalidQuantity)
		}
		lines = append(lines, checkedLine{sku: sku, quantity: quantity})
	}

	// 门店级互斥锁
	lockKey := fmt.Sprintf("replenish:%s", req.StoreID.String())
	token, err := uc.locker.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer uc.locker.Release(context.Background(), lockKey, token)

	// Saga编排：每行一个步骤，补偿为等量撤回
	s := saga.NewSaga(bulkReplenishTimeout)
	s.OnCompensateError = func(stepName string, err error) {
		metrics.IncCounter(metrics.SagaCompensationsTotal)
	}

	for _, line := range lines {
		line := line
		s.AddStep(
			fmt.Sprintf("补货 %s x%d", line.sku, line.quantity.Int()),
			func(ctx context.Context) error {
				return uc.replenishLine(ctx, req.StoreID, line.sku, line.quantity, req.Reason)
			},
			func(ctx context.Context) error {
				return uc.withdrawLine(ctx, req.StoreID, line.sku, line.quantity)
			},
		)
	}

	if err := s.Execute(ctx); err != nil {
		metrics.IncCounterVec(metrics.SagaExecutionsTotal, map[string]string{"result": "failure"})
		return nil, err
	}
	metrics.IncCounterVec(metrics.SagaExecutionsTotal, map[string]string{"result": "success"})

	return &BulkReplenishResponse{Success: true, Lines: len(lines)}, nil
}

// replenishLine 单行补货（Saga正向步骤）
func (uc *ReplenishStockUseCase) replenishLine(ctx context.Context, storeID uuid.UUID,
	sku domain.ProductSku, quantity domain.Quantity, reason string) error {
	err := uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			inv, err := uc.repo.FindByStoreAndSku(txCtx, storeID, sku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version
			if err := inv.ReplenishStock(quantity, reason); err != nil {
				return toAppError(err)
			}
			return toAppErrorIf(uc.repo.Save(txCtx, inv, expectedVersion))
		})
	})
	if err != nil {
		return err
	}

	uc.cache.Invalidate(ctx, storeID, sku)
	return nil
}

// withdrawLine 撤回已补数量（Saga补偿步骤）
func (uc *ReplenishStockUseCase) withdrawLine(ctx context.Context, storeID uuid.UUID,
	sku domain.ProductSku, quantity domain.Quantity) error {
	err := uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			inv, err := uc.repo.FindByStoreAndSku(txCtx, storeID, sku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version
			if err := inv.WithdrawStock(quantity, "批量补货补偿撤回"); err != nil {
				return toAppError(err)
			}
			return toAppErrorIf(uc.repo.Save(txCtx, inv, expectedVersion))
		})
	})
	if err != nil {
		return err
	}

	uc.cache.Invalidate(ctx, storeID, sku)
	return nil
}

// toAppErrorIf 非nil时转换为应用错误
func toAppErrorIf(err error) error {
	if err == nil {
		return nil
	}
	return toAppError(err)
}
