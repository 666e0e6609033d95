package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Inventory 库存聚合根（每个门店×SKU一条）
//
// 核心字段设计：
//   - AvailableQuantity：可用库存（可被新预留占用）
//   - ReservedQuantity：已预留库存（下单未支付，等待提交或释放）
//   - CommittedQuantity：已提交库存（交易完成，等待出库对账）
//
// 库存守恒不变式：
//   - available + reserved + committed 只能通过ReplenishStock增长
//   - reserve/commit/release只在三个桶之间搬运数量，总量不变
//   - 三个桶任何时刻都不为负
//
// 并发模型：
//   - 聚合方法全部是纯内存操作，不触碰存储
//   - 同一库存行的并发写入由Version乐观锁在持久化时裁决
//   - 变更方法产生的领域事件先缓冲在聚合内，由应用层在落库成功后取走
type Inventory struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	ProductSku        ProductSku
	AvailableQuantity Quantity
	ReservedQuantity  Quantity
	CommittedQuantity Quantity
	LastUpdated       time.Time
	// Version 乐观并发控制令牌，持久化层每次成功保存后递增
	Version int64

	events []DomainEvent
}

// NewInventory 创建新的库存聚合（初始全部为可用库存，版本从1开始）
func NewInventory(storeID uuid.UUID, sku ProductSku, initial Quantity) *Inventory {
	return &Inventory{
		ID:                uuid.New(),
		StoreID:           storeID,
		ProductSku:        sku,
		AvailableQuantity: initial,
		ReservedQuantity:  ZeroQuantity(),
		CommittedQuantity: ZeroQuantity(),
		LastUpdated:       time.Now(),
		Version:           1,
	}
}

// ReconstituteInventory 从持久化数据重建聚合（不触发校验与事件）
func ReconstituteInventory(id, storeID uuid.UUID, sku ProductSku,
	available, reserved, committed Quantity, lastUpdated time.Time, version int64) *Inventory {
	return &Inventory{
		ID:                id,
		StoreID:           storeID,
		ProductSku:        sku,
		AvailableQuantity: available,
		ReservedQuantity:  reserved,
		CommittedQuantity: committed,
		LastUpdated:       lastUpdated,
		Version:           version,
	}
}

// ReserveStock 预留库存：available → reserved
//
// 失败场景：
//   - 数量≤0：ErrInvalidQuantity
//   - 可用库存不足：ErrInsufficientStock
//
// 成功时缓冲StockReserved事件，并返回新建的ACTIVE预留实体
func (inv *Inventory) ReserveStock(quantity Quantity, reservationID uuid.UUID, reason string) (*StockReservation, error) {
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if !inv.AvailableQuantity.GreaterOrEqual(quantity) {
		return nil, ErrInsufficientStock
	}

	inv.AvailableQuantity = inv.AvailableQuantity.Subtract(quantity)
	inv.ReservedQuantity = inv.ReservedQuantity.Add(quantity)
	inv.LastUpdated = time.Now()

	reservation := NewStockReservation(reservationID, inv.StoreID, inv.ProductSku, quantity, reason)

	inv.addEvent(newStockReservedEvent(inv.StoreID, inv.ProductSku, quantity, reservationID, reason))

	return reservation, nil
}

// CommitStock 提交预留：reserved → committed
//
// 注意：聚合只守护数量不变式（reserved ≥ quantity）。
// 预留本身的状态/过期检查属于应用层的职责（见application包），
// 聚合不感知预留簿记，保持解耦
func (inv *Inventory) CommitStock(reservationID uuid.UUID, quantity Quantity,
	transactionID uuid.UUID, customerID string) error {
	if !inv.ReservedQuantity.GreaterOrEqual(quantity) {
		return ErrInvalidReservationState
	}

	inv.ReservedQuantity = inv.ReservedQuantity.Subtract(quantity)
	inv.CommittedQuantity = inv.CommittedQuantity.Add(quantity)
	inv.LastUpdated = time.Now()

	inv.addEvent(newStockCommittedEvent(inv.StoreID, inv.ProductSku, quantity, transactionID, customerID))

	return nil
}

// ReleaseReservation 释放预留：reserved → available
func (inv *Inventory) ReleaseReservation(reservationID uuid.UUID, quantity Quantity, reason string) error {
	if !inv.ReservedQuantity.GreaterOrEqual(quantity) {
		return ErrInvalidReservationState
	}

	inv.ReservedQuantity = inv.ReservedQuantity.Subtract(quantity)
	inv.AvailableQuantity = inv.AvailableQuantity.Add(quantity)
	inv.LastUpdated = time.Now()

	inv.addEvent(newStockReservationReleasedEvent(inv.StoreID, inv.ProductSku, quantity, reservationID, reason))

	return nil
}

// ReplenishStock 补货：唯一允许总库存增长的操作
func (inv *Inventory) ReplenishStock(quantity Quantity, reason string) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}

	inv.AvailableQuantity = inv.AvailableQuantity.Add(quantity)
	inv.LastUpdated = time.Now()

	return nil
}

// WithdrawStock 从可用库存中撤回数量
// 用途：批量补货失败时的补偿操作（撤销本次已补的量）
func (inv *Inventory) WithdrawStock(quantity Quantity, reason string) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if !inv.AvailableQuantity.GreaterOrEqual(quantity) {
		return ErrInsufficientStock
	}

	inv.AvailableQuantity = inv.AvailableQuantity.Subtract(quantity)
	inv.LastUpdated = time.Now()

	return nil
}

// TotalQuantity 总库存 = available + reserved + committed
// 不是存储字段，用于盘点与不变式检查
func (inv *Inventory) TotalQuantity() Quantity {
	return inv.AvailableQuantity.Add(inv.ReservedQuantity).Add(inv.CommittedQuantity)
}

// IsLowStock 可用库存是否低于阈值（补货告警）
func (inv *Inventory) IsLowStock(threshold int) bool {
	return inv.AvailableQuantity.Int() <= threshold
}

// Events 返回缓冲的领域事件副本
func (inv *Inventory) Events() []DomainEvent {
	out := make([]DomainEvent, len(inv.events))
	copy(out, inv.events)
	return out
}

// ClearEvents 清空事件缓冲
// 调用时机：应用层持久化成功、事件移交发布器之后
func (inv *Inventory) ClearEvents() {
	inv.events = inv.events[:0]
}

func (inv *Inventory) addEvent(event DomainEvent) {
	inv.events = append(inv.events, event)
}
