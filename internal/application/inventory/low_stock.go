package inventory

import (
	"context"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// FindLowStockUseCase 低库存查询用例（补货决策输入）
// 阈值判断针对available：reserved/committed不算可卖库存。
// 管理侧低频查询，直接回源不走缓存
type FindLowStockUseCase struct {
	repo domain.Repository
}

// NewFindLowStockUseCase 创建低库存查询用例
func NewFindLowStockUseCase(repo domain.Repository) *FindLowStockUseCase {
	return &FindLowStockUseCase{repo: repo}
}

// Execute 查询门店内available≤threshold的库存行
func (uc *FindLowStockUseCase) Execute(ctx context.Context, storeID uuid.UUID, threshold int) ([]*InventoryView, error) {
	if threshold < 0 {
		threshold = 0
	}

	items, err := uc.repo.FindLowStock(ctx, storeID, threshold)
	if err != nil {
		return nil, toAppError(err)
	}

	return toViews(items), nil
}
