package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// CommitStockUseCase 提交预留用例（交易完成）
//
// 提交把reserved搬到committed，是预留生命周期的正常终点。
// 状态与过期检查都在这里完成（聚合只守护数量不变式）：
//   - 预留不存在 → ErrReservationNotFound
//   - 预留非ACTIVE → ErrInvalidReservationState（重复提交第二次在此失败）
//   - 预留已过期 → ErrReservationExpired（过期即失效，无论清扫是否跑过）
type CommitStockUseCase struct {
	repo      domain.Repository
	resRepo   domain.ReservationRepository
	txManager TxManager
	cache     Cache
	publisher Publisher
	guard     *Guard
}

// NewCommitStockUseCase 创建提交用例
func NewCommitStockUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager TxManager,
	cache Cache,
	publisher Publisher,
	guard *Guard,
) *CommitStockUseCase {
	return &CommitStockUseCase{
		repo:      repo,
		resRepo:   resRepo,
		txManager: txManager,
		cache:     cache,
		publisher: publisher,
		guard:     guard,
	}
}

// CommitStockRequest 提交请求DTO
type CommitStockRequest struct {
	ReservationID uuid.UUID
	TransactionID uuid.UUID
	CustomerID    string
}

// CommitStockResponse 提交响应DTO
type CommitStockResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id"`
	Committed     int    `json:"committed"`
	Message       string `json:"message,omitempty"`
}

// Execute 执行提交
func (uc *CommitStockUseCase) Execute(ctx context.Context, req CommitStockRequest) (*CommitStockResponse, error) {
	start := time.Now()

	var (
		committed int
		events    []domain.DomainEvent
		storeID   uuid.UUID
		sku       domain.ProductSku
	)

	err := uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			// 1. 加载预留并检查状态
			res, err := uc.resRepo.FindByID(txCtx, req.ReservationID)
			if err != nil {
				return toAppError(err)
			}
			if res.Status != domain.StatusActive {
				return toAppError(domain.ErrInvalidReservationState)
			}
			if res.IsExpired() {
				// 过期即失效：即使清扫还没固化EXPIRED状态，
				// 这里也按过期拒绝，持有的库存交给清扫回收
				return toAppError(domain.ErrReservationExpired)
			}

			// 2. 加载库存并搬运数量
			inv, err := uc.repo.FindByStoreAndSku(txCtx, res.StoreID, res.ProductSku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version

			if err := inv.CommitStock(res.ReservationID, res.Quantity, req.TransactionID, req.CustomerID); err != nil {
				return toAppError(err)
			}
			if err := res.MarkCommitted(); err != nil {
				return toAppError(err)
			}

			// 3. 同一事务内保存库存与预留
			if err := uc.repo.Save(txCtx, inv, expectedVersion); err != nil {
				return toAppError(err)
			}
			if err := uc.resRepo.Save(txCtx, res); err != nil {
				return toAppError(err)
			}

			committed = res.Quantity.Int()
			storeID = res.StoreID
			sku = res.ProductSku
			events = inv.Events()
			inv.ClearEvents()
			return nil
		})
	})

	if err != nil {
		observeOp("commit", "failure", start)
		return nil, err
	}

	// 事务提交后：失效缓存、异步发布事件
	// 事件发布失败绝不回滚已提交的库存状态
	uc.cache.Invalidate(ctx, storeID, sku)
	uc.publisher.Publish(ctx, events)

	observeOp("commit", "success", start)
	return &CommitStockResponse{
		Success:       true,
		ReservationID: req.ReservationID.String(),
		Committed:     committed,
	}, nil
}
