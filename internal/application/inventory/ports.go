package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// 应用层对基础设施的依赖以接口声明，具体实现由装配时注入
// （Redis缓存、RabbitMQ发布器、MySQL事务管理器），测试时用内存替身

// Cache 库存快照缓存
// 实现必须把自身故障降级为miss：Get失败返回(nil, false)，
// Set/Invalidate失败静默（只记录日志），绝不向调用方抛错
type Cache interface {
	Get(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku) (*inventory.Inventory, bool)
	Set(ctx context.Context, inv *inventory.Inventory)
	Invalidate(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku)

	GetStoreSummary(ctx context.Context, storeID uuid.UUID) ([]*inventory.Inventory, bool)
	SetStoreSummary(ctx context.Context, storeID uuid.UUID, items []*inventory.Inventory)
}

// Publisher 领域事件发布器（异步、至少一次）
// Publish只做入队交接，发布失败不回传给调用方
type Publisher interface {
	Publish(ctx context.Context, events []inventory.DomainEvent)
}

// Locker 分布式锁（批量管理操作互斥）
// Acquire失败即刻返回ErrLockNotAcquired，不自旋等待
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// TxManager 事务边界
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
