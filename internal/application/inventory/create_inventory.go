package inventory

import (
	"context"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

// CreateInventoryUseCase 创建库存行用例（门店上新SKU）
type CreateInventoryUseCase struct {
	repo domain.Repository
}

// NewCreateInventoryUseCase 创建用例
func NewCreateInventoryUseCase(repo domain.Repository) *CreateInventoryUseCase {
	return &CreateInventoryUseCase{repo: repo}
}

// CreateInventoryRequest 创建请求DTO
type CreateInventoryRequest struct {
	StoreID         uuid.UUID
	Sku             string
	InitialQuantity int
}

// CreateInventoryResponse 创建响应DTO
type CreateInventoryResponse struct {
	ID        string `json:"id"`
	StoreID   string `json:"store_id"`
	Sku       string `json:"sku"`
	Available int    `json:"available"`
	Version   int64  `json:"version"`
}

// Execute 执行创建
// 初始数量允许为0（先建行后补货）；同门店同SKU重复创建
// 由唯一索引拦截并返回ErrInventoryExists
func (uc *CreateInventoryUseCase) Execute(ctx context.Context, req CreateInventoryRequest) (*CreateInventoryResponse, error) {
	sku, err := domain.NewProductSku(req.Sku)
	if err != nil {
		return nil, toAppError(err)
	}
	initial, err := domain.NewQuantity(req.InitialQuantity)
	if err != nil {
		return nil, toAppError(err)
	}

	inv := domain.NewInventory(req.StoreID, sku, initial)

	if err := uc.repo.Create(ctx, inv); err != nil {
		return nil, toAppError(err)
	}

	return &CreateInventoryResponse{
		ID:        inv.ID.String(),
		StoreID:   inv.StoreID.String(),
		Sku:       inv.ProductSku.String(),
		Available: inv.AvailableQuantity.Int(),
		Version:   inv.Version,
	}, nil
}
