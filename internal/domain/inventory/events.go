package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 领域事件定义
//
// 设计说明：
// 1. 事件是封闭的类型集合（StockReserved/StockCommitted/StockReservationReleased），
//    用EventType标记区分，消费方通过switch分发，不使用接口多态
// 2. 事件由聚合在变更方法内缓冲，应用层在持久化成功后统一取走发布，
//    避免"先发事件后落库失败"造成的幽灵事件
// 3. 下游按EventID去重（至少一次投递）

// EventType 事件类型标记
type EventType string

const (
	// EventStockReserved 库存已预留
	EventStockReserved EventType = "StockReserved"
	// EventStockCommitted 库存已提交（交易完成）
	EventStockCommitted EventType = "StockCommitted"
	// EventStockReservationReleased 预留已释放（交易取消/超时回收）
	EventStockReservationReleased EventType = "StockReservationReleased"
)

// EventSchemaVersion 事件结构版本号，字段变更时递增
const EventSchemaVersion = 1

// DomainEvent 领域事件
//
// 公共字段：EventID、EventType、OccurredOn、SchemaVersion
// 载荷字段：按事件类型填充，未使用的字段序列化时省略
type DomainEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     EventType `json:"event_type"`
	OccurredOn    time.Time `json:"occurred_on"`
	SchemaVersion int       `json:"schema_version"`

	StoreID    uuid.UUID `json:"store_id"`
	ProductSku string    `json:"product_sku"`
	Quantity   int       `json:"quantity"`

	// StockReserved / StockReservationReleased 专有
	ReservationID uuid.UUID `json:"reservation_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`

	// StockCommitted 专有
	TransactionID uuid.UUID `json:"transaction_id,omitempty"`
	CustomerID    string    `json:"customer_id,omitempty"`
}

// PartitionKey 事件分区键
// 必须由聚合身份（storeID+SKU）派生：同一条库存线上的事件
// 落到同一个分区，才能保证下游消费顺序与变更顺序一致
func (e DomainEvent) PartitionKey() string {
	return fmt.Sprintf("%s:%s", e.StoreID, e.ProductSku)
}

// newStockReservedEvent 创建库存预留事件
func newStockReservedEvent(storeID uuid.UUID, sku ProductSku, quantity Quantity,
	reservationID uuid.UUID, reason string) DomainEvent {
	e := newBaseEvent(EventStockReserved, storeID, sku, quantity)
	e.ReservationID = reservationID
	e.Reason = reason
	return e
}

// newStockCommittedEvent 创建库存提交事件
func newStockCommittedEvent(storeID uuid.UUID, sku ProductSku, quantity Quantity,
	transactionID uuid.UUID, customerID string) DomainEvent {
	e := newBaseEvent(EventStockCommitted, storeID, sku, quantity)
	e.TransactionID = transactionID
	e.CustomerID = customerID
	return e
}

// newStockReservationReleasedEvent 创建预留释放事件
func newStockReservationReleasedEvent(storeID uuid.UUID, sku ProductSku, quantity Quantity,
	reservationID uuid.UUID, reason string) DomainEvent {
	e := newBaseEvent(EventStockReservationReleased, storeID, sku, quantity)
	e.ReservationID = reservationID
	e.Reason = reason
	return e
}

func newBaseEvent(eventType EventType, storeID uuid.UUID, sku ProductSku, quantity Quantity) DomainEvent {
	return DomainEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		OccurredOn:    time.Now(),
		SchemaVersion: EventSchemaVersion,
		StoreID:       storeID,
		ProductSku:    sku.String(),
		Quantity:      quantity.Int(),
	}
}
