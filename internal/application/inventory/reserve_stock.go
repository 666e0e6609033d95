package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
)

// ReserveStockUseCase 预留库存用例
//
// 这是整个系统最核心、并发压力最大的路径，完整流程：
//  1. 参数校验（不产生副作用）
//  2. 弹性防护下执行读-改-写：
//     加载最新聚合 → 领域方法搬运数量 → 乐观锁落库 + 预留落库（同一事务）
//  3. 落库成功后：同步失效缓存 → 异步发布事件 → 返回响应
//
// 并发语义：两个请求同时抢最后一件库存时，先落库者胜出，
// 后落库者拿到版本冲突后重试，重试中重新加载会看到库存不足，
// 得到确定性的失败——不超卖
type ReserveStockUseCase struct {
	repo      domain.Repository
	resRepo   domain.ReservationRepository
	txManager TxManager
	cache     Cache
	publisher Publisher
	guard     *Guard
}

// NewReserveStockUseCase 创建预留用例
func NewReserveStockUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager TxManager,
	cache Cache,
	publisher Publisher,
	guard *Guard,
) *ReserveStockUseCase {
	return &ReserveStockUseCase{
		repo:      repo,
		resRepo:   resRepo,
		txManager: txManager,
		cache:     cache,
		publisher: publisher,
		guard:     guard,
	}
}

// ReserveStockRequest 预留请求DTO
type ReserveStockRequest struct {
	StoreID  uuid.UUID
	Sku      string
	Quantity int
	Reason   string
}

// ReserveStockResponse 预留响应DTO
// Success=false时ReservationID为空，Message说明原因
type ReserveStockResponse struct {
	Success        bool      `json:"success"`
	ReservationID  string    `json:"reservation_id,omitempty"`
	RemainingStock int       `json:"remaining_stock"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Execute 执行预留
//
// 失败语义分三类：
//   - 库存不足：Success=false + 当前可用量（确定性业务结果，不是error）
//   - 熔断降级：Success=false + RemainingStock=0 + 固定提示语
//     （降级响应绝不报告乐观的库存数字，宁可少卖不能超卖）
//   - 其他错误（参数/存储故障）：error返回，由HTTP层映射状态码
func (uc *ReserveStockUseCase) Execute(ctx context.Context, req ReserveStockRequest) (*ReserveStockResponse, error) {
	start := time.Now()

	// 1. 参数校验
	sku, err := domain.NewProductSku(req.Sku)
	if err != nil {
		return nil, toAppError(err)
	}
	quantity, err := domain.NewQuantity(req.Quantity)
	if err != nil || quantity.IsZero() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	reservationID := uuid.New()

	var (
		reservation *domain.StockReservation
		events      []domain.DomainEvent
		remaining   int
	)

	// 2. 弹性防护下的读-改-写
	// 每次（重试）执行都重新加载聚合，绝不重放旧副本
	err = uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			inv, err := uc.repo.FindByStoreAndSku(txCtx, req.StoreID, sku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version

			res, err := inv.ReserveStock(quantity, reservationID, req.Reason)
			if err != nil {
				// 库存不足时带出当前可用量供响应使用
				remaining = inv.AvailableQuantity.Int()
				return toAppError(err)
			}

			if err := uc.repo.Save(txCtx, inv, expectedVersion); err != nil {
				return toAppError(err)
			}
			if err := uc.resRepo.Save(txCtx, res); err != nil {
				return toAppError(err)
			}

			reservation = res
			events = inv.Events()
			remaining = inv.AvailableQuantity.Int()
			inv.ClearEvents()
			return nil
		})
	})

	if err != nil {
		// 熔断降级：确定性拒绝，不猜测库存
		if IsUnavailable(err) {
			observeOp("reserve", "rejected", start)
			return &ReserveStockResponse{
				Success:        false,
				RemainingStock: 0,
				Message:        "库存服务暂时不可用，请稍后重试",
			}, nil
		}

		// 库存不足：确定性业务结果
		if errors.Is(err, apperrors.ErrInsufficientStock) {
			observeOp("reserve", "insufficient", start)
			return &ReserveStockResponse{
				Success:        false,
				RemainingStock: remaining,
				Message:        apperrors.ErrInsufficientStock.Message,
			}, nil
		}

		if errors.Is(err, apperrors.ErrConcurrencyConflict) {
			observeOp("reserve", "conflict", start)
		} else {
			observeOp("reserve", "failure", start)
		}
		return nil, err
	}

	// 3. 落库成功后：失效缓存、异步发布事件
	uc.cache.Invalidate(ctx, req.StoreID, sku)
	uc.publisher.Publish(ctx, events)

	observeOp("reserve", "success", start)
	return &ReserveStockResponse{
		Success:        true,
		ReservationID:  reservation.ReservationID.String(),
		RemainingStock: remaining,
		ExpiresAt:      reservation.ExpiresAt,
	}, nil
}
