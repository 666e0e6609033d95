package inventory

import (
	"time"

	"github.com/google/uuid"
)

// ReservationTTL 预留有效期（固定策略）
// 下单后必须在5分钟内提交，否则预留过期、持有的库存会被回收
const ReservationTTL = 5 * time.Minute

// ReservationStatus 预留状态
//
// 状态机：
//
//	ACTIVE ──commit──→ COMMITTED（终态）
//	ACTIVE ──release─→ RELEASED（终态）
//	ACTIVE ──expire──→ EXPIRED（终态，惰性派生）
//
// 注意：EXPIRED是派生状态——只要expiresAt已过，无论存储里的
// status字段还是不是ACTIVE，这条预留都按过期处理
type ReservationStatus string

const (
	StatusActive    ReservationStatus = "ACTIVE"
	StatusCommitted ReservationStatus = "COMMITTED"
	StatusReleased  ReservationStatus = "RELEASED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

// StockReservation 库存预留实体
// 表示一次临时的库存占用，带超时机制防止无限期持有
type StockReservation struct {
	ReservationID uuid.UUID
	StoreID       uuid.UUID
	ProductSku    ProductSku
	Quantity      Quantity
	Reason        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Status        ReservationStatus
}

// NewStockReservation 创建ACTIVE预留，有效期= CreatedAt + ReservationTTL
func NewStockReservation(reservationID, storeID uuid.UUID, sku ProductSku,
	quantity Quantity, reason string) *StockReservation {
	now := time.Now()
	return &StockReservation{
		ReservationID: reservationID,
		StoreID:       storeID,
		ProductSku:    sku,
		Quantity:      quantity,
		Reason:        reason,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ReservationTTL),
		Status:        StatusActive,
	}
}

// ReconstituteReservation 从持久化数据重建预留实体
func ReconstituteReservation(reservationID, storeID uuid.UUID, sku ProductSku,
	quantity Quantity, reason string, createdAt, expiresAt time.Time,
	status ReservationStatus) *StockReservation {
	return &StockReservation{
		ReservationID: reservationID,
		StoreID:       storeID,
		ProductSku:    sku,
		Quantity:      quantity,
		Reason:        reason,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		Status:        status,
	}
}

// IsExpired 预留是否已过期
func (r *StockReservation) IsExpired() bool {
	return r.IsExpiredAt(time.Now())
}

// IsExpiredAt 在指定时刻是否已过期
func (r *StockReservation) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// MarkCommitted ACTIVE → COMMITTED
// 终态不允许再次流转（同一预留提交两次，第二次在这里失败）
func (r *StockReservation) MarkCommitted() error {
	if r.Status != StatusActive {
		return ErrInvalidReservationState
	}
	r.Status = StatusCommitted
	return nil
}

// MarkReleased ACTIVE → RELEASED
func (r *StockReservation) MarkReleased() error {
	if r.Status != StatusActive {
		return ErrInvalidReservationState
	}
	r.Status = StatusReleased
	return nil
}

// MarkExpired ACTIVE → EXPIRED
// 由过期清扫流程调用，把派生的过期状态固化到存储
func (r *StockReservation) MarkExpired() error {
	if r.Status != StatusActive {
		return ErrInvalidReservationState
	}
	r.Status = StatusExpired
	return nil
}
