package mysql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

// inventoryRepository 库存仓储实现（MySQL）
// 设计说明：
// 1. 实现domain/inventory/repository.go定义的接口
// 2. 负责domain实体与GORM模型之间的转换
// 3. 乐观锁：UPDATE ... WHERE id=? AND version=?，RowsAffected=0
//    即版本冲突，整条更新原子失败
type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓储
func NewInventoryRepository(db *gorm.DB) inventory.Repository {
	return &inventoryRepository{db: db}
}

// FindByStoreAndSku 查询某门店某SKU的库存行
func (r *inventoryRepository) FindByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku) (*inventory.Inventory, error) {
	var model InventoryModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("store_id = ? AND product_sku = ?", storeID.String(), string(sku)).
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrInventoryNotFound
		}
		return nil, apperrors.Wrap(err, "查询库存失败")
	}

	return toInventoryEntity(&model)
}

// FindByIDWithLock 按ID加悲观锁查询（SELECT FOR UPDATE）
// 必须在事务内调用，锁随事务提交/回滚释放
func (r *inventoryRepository) FindByIDWithLock(ctx context.Context, id uuid.UUID) (*inventory.Inventory, error) {
	var model InventoryModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.String()).
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrInventoryNotFound
		}
		return nil, apperrors.Wrap(err, "锁定查询库存失败")
	}

	return toInventoryEntity(&model)
}

// FindByStore 查询门店全部库存
func (r *inventoryRepository) FindByStore(ctx context.Context, storeID uuid.UUID) ([]*inventory.Inventory, error) {
	var models []InventoryModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("store_id = ?", storeID.String()).
		Order("product_sku").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询门店库存失败")
	}

	return toInventoryEntities(models)
}

// FindLowStock 查询门店内可用库存≤阈值的库存行
func (r *inventoryRepository) FindLowStock(ctx context.Context, storeID uuid.UUID, threshold int) ([]*inventory.Inventory, error) {
	var models []InventoryModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("store_id = ? AND available_quantity <= ?", storeID.String(), threshold).
		Order("available_quantity").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询低库存失败")
	}

	return toInventoryEntities(models)
}

// Create 创建新库存行
func (r *inventoryRepository) Create(ctx context.Context, inv *inventory.Inventory) error {
	model := toInventoryModel(inv)

	db := getDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(model).Error; err != nil {
		// (store_id, product_sku)唯一索引冲突
		if isDuplicateError(err) {
			return inventory.ErrInventoryExists
		}
		return apperrors.Wrap(err, "创建库存失败")
	}

	return nil
}

// Save 带乐观锁保存
// 版本不匹配时RowsAffected=0，不产生任何写入，返回ErrVersionConflict；
// 成功后聚合版本号递增
func (r *inventoryRepository) Save(ctx context.Context, inv *inventory.Inventory, expectedVersion int64) error {
	db := getDB(ctx, r.db)

	result := db.WithContext(ctx).Model(&InventoryModel{}).
		Where("id = ? AND version = ?", inv.ID.String(), expectedVersion).
		Updates(map[string]interface{}{
			"available_quantity": inv.AvailableQuantity.Int(),
			"reserved_quantity":  inv.ReservedQuantity.Int(),
			"committed_quantity": inv.CommittedQuantity.Int(),
			"version":            expectedVersion + 1,
			"last_updated":       inv.LastUpdated,
		})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "保存库存失败")
	}

	if result.RowsAffected == 0 {
		metrics.IncCounter(metrics.VersionConflictsTotal)
		return inventory.ErrVersionConflict
	}

	inv.Version = expectedVersion + 1
	return nil
}

// Delete 删除库存行
func (r *inventoryRepository) Delete(ctx context.Context, inv *inventory.Inventory) error {
	db := getDB(ctx, r.db)
	result := db.WithContext(ctx).
		Where("id = ?", inv.ID.String()).
		Delete(&InventoryModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除库存失败")
	}
	if result.RowsAffected == 0 {
		return inventory.ErrInventoryNotFound
	}
	return nil
}

// toInventoryModel 领域实体 → GORM模型
func toInventoryModel(inv *inventory.Inventory) *InventoryModel {
	return &InventoryModel{
		ID:                inv.ID.String(),
		StoreID:           inv.StoreID.String(),
		ProductSku:        string(inv.ProductSku),
		AvailableQuantity: inv.AvailableQuantity.Int(),
		ReservedQuantity:  inv.ReservedQuantity.Int(),
		CommittedQuantity: inv.CommittedQuantity.Int(),
		Version:           inv.Version,
		LastUpdated:       inv.LastUpdated,
	}
}

// toInventoryEntity GORM模型 → 领域实体
func toInventoryEntity(model *InventoryModel) (*inventory.Inventory, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "库存ID解析失败")
	}
	storeID, err := uuid.Parse(model.StoreID)
	if err != nil {
		return nil, apperrors.Wrap(err, "门店ID解析失败")
	}

	available, err := inventory.NewQuantity(model.AvailableQuantity)
	if err != nil {
		return nil, apperrors.Wrap(err, "可用库存数据非法")
	}
	reserved, err := inventory.NewQuantity(model.ReservedQuantity)
	if err != nil {
		return nil, apperrors.Wrap(err, "预留库存数据非法")
	}
	committed, err := inventory.NewQuantity(model.CommittedQuantity)
	if err != nil {
		return nil, apperrors.Wrap(err, "已提交库存数据非法")
	}

	return inventory.ReconstituteInventory(
		id, storeID, inventory.ProductSku(model.ProductSku),
		available, reserved, committed,
		model.LastUpdated, model.Version,
	), nil
}

func toInventoryEntities(models []InventoryModel) ([]*inventory.Inventory, error) {
	out := make([]*inventory.Inventory, 0, len(models))
	for i := range models {
		entity, err := toInventoryEntity(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
