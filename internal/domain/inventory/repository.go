package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository 库存聚合仓储接口（领域层定义，基础设施层实现）
//
// 设计说明：
// 1. 依赖倒置：领域层只声明需要什么，不关心MySQL还是别的存储
// 2. Save携带expectedVersion做乐观锁：版本不匹配时必须原子失败
//    （不允许部分写入），返回ErrVersionConflict
type Repository interface {
	// FindByStoreAndSku 查询某门店某SKU的库存行
	FindByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku ProductSku) (*Inventory, error)

	// FindByIDWithLock 按ID加悲观锁查询（SELECT FOR UPDATE）
	// 仅供管理类操作使用，常规路径走乐观锁
	FindByIDWithLock(ctx context.Context, id uuid.UUID) (*Inventory, error)

	// FindByStore 查询门店全部库存
	FindByStore(ctx context.Context, storeID uuid.UUID) ([]*Inventory, error)

	// FindLowStock 查询门店内可用库存≤阈值的库存行（补货决策）
	FindLowStock(ctx context.Context, storeID uuid.UUID, threshold int) ([]*Inventory, error)

	// Create 创建新库存行（同门店同SKU重复时返回ErrInventoryExists）
	Create(ctx context.Context, inv *Inventory) error

	// Save 带乐观锁保存
	// expectedVersion是本次加载时捕获的版本；存储中版本已变化时
	// 返回ErrVersionConflict且不产生任何写入。成功后inv.Version递增
	Save(ctx context.Context, inv *Inventory, expectedVersion int64) error

	// Delete 删除库存行
	Delete(ctx context.Context, inv *Inventory) error
}

// ReservationRepository 预留仓储接口
type ReservationRepository interface {
	// FindByID 按预留ID查询（不存在时返回ErrReservationNotFound）
	FindByID(ctx context.Context, reservationID uuid.UUID) (*StockReservation, error)

	// FindActiveByStoreAndSku 查询某库存线上的全部ACTIVE预留
	FindActiveByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku ProductSku) ([]*StockReservation, error)

	// FindExpiredBefore 查询expiresAt早于cutoff且仍为ACTIVE的预留
	// 供过期清扫使用（清扫调度器是外部协作方，核心只暴露查询形状）
	FindExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*StockReservation, error)

	// Save 保存预留（新建或状态更新）
	Save(ctx context.Context, reservation *StockReservation) error

	// Delete 删除预留
	Delete(ctx context.Context, reservationID uuid.UUID) error
}
