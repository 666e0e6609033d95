package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// GetInventoryUseCase 库存查询用例（cache-aside读路径）
//
// 读取顺序：缓存 → miss回源MySQL → 回填缓存。
// 缓存故障全程降级，查询绝不因Redis不可用而失败
type GetInventoryUseCase struct {
	repo  domain.Repository
	cache Cache
}

// NewGetInventoryUseCase 创建查询用例
func NewGetInventoryUseCase(repo domain.Repository, cache Cache) *GetInventoryUseCase {
	return &GetInventoryUseCase{repo: repo, cache: cache}
}

// InventoryView 对外的库存视图
type InventoryView struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Sku         string    `json:"sku"`
	Available   int       `json:"available"`
	Reserved    int       `json:"reserved"`
	Committed   int       `json:"committed"`
	Total       int       `json:"total"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Execute 查询单行库存
func (uc *GetInventoryUseCase) Execute(ctx context.Context, storeID uuid.UUID, skuRaw string) (*InventoryView, error) {
	sku, err := domain.NewProductSku(skuRaw)
	if err != nil {
		return nil, toAppError(err)
	}

	if inv, ok := uc.cache.Get(ctx, storeID, sku); ok {
		return toView(inv), nil
	}

	inv, err := uc.repo.FindByStoreAndSku(ctx, storeID, sku)
	if err != nil {
		return nil, toAppError(err)
	}

	uc.cache.Set(ctx, inv)
	return toView(inv), nil
}

// ExecuteStore 查询门店全部库存（走门店汇总缓存）
func (uc *GetInventoryUseCase) ExecuteStore(ctx context.Context, storeID uuid.UUID) ([]*InventoryView, error) {
	if items, ok := uc.cache.GetStoreSummary(ctx, storeID); ok {
		return toViews(items), nil
	}

	items, err := uc.repo.FindByStore(ctx, storeID)
	if err != nil {
		return nil, toAppError(err)
	}

	uc.cache.SetStoreSummary(ctx, storeID, items)
	return toViews(items), nil
}

func toView(inv *domain.Inventory) *InventoryView {
	return &InventoryView{
		ID:          inv.ID.String(),
		StoreID:     inv.StoreID.String(),
		Sku:         inv.ProductSku.String(),
		Available:   inv.AvailableQuantity.Int(),
		Reserved:    inv.ReservedQuantity.Int(),
		Committed:   inv.CommittedQuantity.Int(),
		Total:       inv.TotalQuantity().Int(),
		Version:     inv.Version,
		LastUpdated: inv.LastUpdated,
	}
}

func toViews(items []*domain.Inventory) []*InventoryView {
	out := make([]*InventoryView, 0, len(items))
	for _, inv := range items {
		out = append(out, toView(inv))
	}
	return out
}
