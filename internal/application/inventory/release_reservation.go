package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// ReleaseReservationUseCase 释放预留用例（交易取消）
//
// 释放把reserved搬回available。只接受ACTIVE且未过期的预留：
// 已提交/已释放的预留再次释放返回ErrInvalidReservationState；
// 已过期的预留与提交一样按ErrReservationExpired拒绝（无论存储
// 状态是否仍为ACTIVE），持有的库存统一由过期清扫回收
type ReleaseReservationUseCase struct {
	repo      domain.Repository
	resRepo   domain.ReservationRepository
	txManager TxManager
	cache     Cache
	publisher Publisher
	guard     *Guard
}

// NewReleaseReservationUseCase 创建释放用例
func NewReleaseReservationUseCase(
	repo domain.Repository,
	resRepo domain.ReservationRepository,
	txManager TxManager,
	cache Cache,
	publisher Publisher,
	guard *Guard,
) *ReleaseReservationUseCase {
	return &ReleaseReservationUseCase{
		repo:      repo,
		resRepo:   resRepo,
		txManager: txManager,
		cache:     cache,
		publisher: publisher,
		guard:     guard,
	}
}

// ReleaseReservationRequest 释放请求DTO
type ReleaseReservationRequest struct {
	ReservationID uuid.UUID
	Reason        string
}

// ReleaseReservationResponse 释放响应DTO
type ReleaseReservationResponse struct {
	Success        bool   `json:"success"`
	ReservationID  string `json:"reservation_id"`
	Released       int    `json:"released"`
	AvailableStock int    `json:"available_stock"`
}

// Execute 执行释放
func (uc *ReleaseReservationUseCase) Execute(ctx context.Context, req ReleaseReservationRequest) (*ReleaseReservationResponse, error) {
	start := time.Now()

	var (
		released  int
		available int
		events    []domain.DomainEvent
		storeID   uuid.UUID
		sku       domain.ProductSku
	)

	err := uc.guard.Execute(ctx, func(ctx context.Context) error {
		return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
			res, err := uc.resRepo.FindByID(txCtx, req.ReservationID)
			if err != nil {
				return toAppError(err)
			}
			if res.Status != domain.StatusActive {
				return toAppError(domain.ErrInvalidReservationState)
			}
			if res.IsExpired() {
				// 过期即失效，与提交路径同一判定：
				// 库存归还交给清扫，不在这里做
				return toAppError(domain.ErrReservationExpired)
			}

			inv, err := uc.repo.FindByStoreAndSku(txCtx, res.StoreID, res.ProductSku)
			if err != nil {
				return toAppError(err)
			}
			expectedVersion := inv.Version

			if err := inv.ReleaseReservation(res.ReservationID, res.Quantity, req.Reason); err != nil {
				return toAppError(err)
			}
			if err := res.MarkReleased(); err != nil {
				return toAppError(err)
			}

			if err := uc.repo.Save(txCtx, inv, expectedVersion); err != nil {
				return toAppError(err)
			}
			if err := uc.resRepo.Save(txCtx, res); err != nil {
				return toAppError(err)
			}

			released = res.Quantity.Int()
			available = inv.AvailableQuantity.Int()
			storeID = res.StoreID
			sku = res.ProductSku
			events = inv.Events()
			inv.ClearEvents()
			return nil
		})
	})

	if err != nil {
		observeOp("release", "failure", start)
		return nil, err
	}

	uc.cache.Invalidate(ctx, storeID, sku)
	uc.publisher.Publish(ctx, events)

	observeOp("release", "success", start)
	return &ReleaseReservationResponse{
		Success:        true,
		ReservationID:  req.ReservationID.String(),
		Released:       released,
		AvailableStock: available,
	}, nil
}
