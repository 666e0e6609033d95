package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
)

// reservationRepository 预留仓储实现（MySQL）
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建预留仓储
func NewReservationRepository(db *gorm.DB) inventory.ReservationRepository {
	return &reservationRepository{db: db}
}

// FindByID 按预留ID查询
func (r *reservationRepository) FindByID(ctx context.Context, reservationID uuid.UUID) (*inventory.StockReservation, error) {
	var model ReservationModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("reservation_id = ?", reservationID.String()).
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrReservationNotFound
		}
		return nil, apperrors.Wrap(err, "查询预留失败")
	}

	return toReservationEntity(&model)
}

// FindActiveByStoreAndSku 查询某库存行上的全部ACTIVE预留
// 注意：存储status为ACTIVE但已过期的记录也会返回，
// 过期判断由调用方通过IsExpired完成
func (r *reservationRepository) FindActiveByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku) ([]*inventory.StockReservation, error) {
	var models []ReservationModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("store_id = ? AND product_sku = ? AND status = ?",
			storeID.String(), string(sku), string(inventory.StatusActive)).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询活跃预留失败")
	}

	return toReservationEntities(models)
}

// FindExpiredBefore 查询expiresAt早于cutoff且仍为ACTIVE的预留
// 走idx_status_expire索引，limit限制单批清扫规模
func (r *reservationRepository) FindExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*inventory.StockReservation, error) {
	var models []ReservationModel
	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(inventory.StatusActive), cutoff).
		Order("expires_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询过期预留失败")
	}

	return toReservationEntities(models)
}

// Save 保存预留（新建或状态更新，按主键upsert）
func (r *reservationRepository) Save(ctx context.Context, reservation *inventory.StockReservation) error {
	model := toReservationModel(reservation)

	db := getDB(ctx, r.db)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reservation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return apperrors.Wrap(err, "保存预留失败")
	}

	return nil
}

// Delete 删除预留
func (r *reservationRepository) Delete(ctx context.Context, reservationID uuid.UUID) error {
	db := getDB(ctx, r.db)
	result := db.WithContext(ctx).
		Where("reservation_id = ?", reservationID.String()).
		Delete(&ReservationModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除预留失败")
	}
	if result.RowsAffected == 0 {
		return inventory.ErrReservationNotFound
	}
	return nil
}

// toReservationModel 领域实体 → GORM模型
func toReservationModel(res *inventory.StockReservation) *ReservationModel {
	return &ReservationModel{
		ReservationID: res.ReservationID.String(),
		StoreID:       res.StoreID.String(),
		ProductSku:    string(res.ProductSku),
		Quantity:      res.Quantity.Int(),
		Reason:        res.Reason,
		Status:        string(res.Status),
		ExpiresAt:     res.ExpiresAt,
		CreatedAt:     res.CreatedAt,
	}
}

// toReservationEntity GORM模型 → 领域实体
func toReservationEntity(model *ReservationModel) (*inventory.StockReservation, error) {
	reservationID, err := uuid.Parse(model.ReservationID)
	if err != nil {
		return nil, apperrors.Wrap(err, "预留ID解析失败")
	}
	storeID, err := uuid.Parse(model.StoreID)
	if err != nil {
		return nil, apperrors.Wrap(err, "门店ID解析失败")
	}
	quantity, err := inventory.NewQuantity(model.Quantity)
	if err != nil {
		return nil, apperrors.Wrap(err, "预留数量数据非法")
	}

	return inventory.ReconstituteReservation(
		reservationID, storeID, inventory.ProductSku(model.ProductSku),
		quantity, model.Reason,
		model.CreatedAt, model.ExpiresAt,
		inventory.ReservationStatus(model.Status),
	), nil
}

func toReservationEntities(models []ReservationModel) ([]*inventory.StockReservation, error) {
	out := make([]*inventory.StockReservation, 0, len(models))
	for i := range models {
		entity, err := toReservationEntity(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
