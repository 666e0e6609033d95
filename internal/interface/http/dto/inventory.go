package dto

import "time"

// ReserveStockRequest HTTP预留请求
// validator tag说明:
// - required: 必填字段
// - uuid: 标准UUID格式校验
// - min/max: 数值范围校验(单次预留上限999，防御异常大单)
type ReserveStockRequest struct {
	StoreID  string `json:"store_id" binding:"required,uuid" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Sku      string `json:"sku" binding:"required" example:"SKU12345"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=999" example:"2"`
	Reason   string `json:"reason" binding:"max=200" example:"购物车下单"`
}

// ReserveStockResponse HTTP预留响应
// Success=false时reservation_id为空，message说明原因(库存不足/服务降级)
type ReserveStockResponse struct {
	Success        bool       `json:"success" example:"true"`
	ReservationID  string     `json:"reservation_id,omitempty" example:"f1d2c3b4-a5e6-4789-8abc-def012345678"`
	RemainingStock int        `json:"remaining_stock" example:"8"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// CommitStockRequest HTTP提交请求
// transaction_id是销售流水号，customer_id为可选的顾客标识，
// 两者仅透传到领域事件，不参与库存判定
type CommitStockRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid" example:"3e1a2b3c-4d5e-6f70-8192-a3b4c5d6e7f8"`
	CustomerID    string `json:"customer_id" binding:"max=64" example:"cust-1001"`
}

// CommitStockResponse HTTP提交响应
type CommitStockResponse struct {
	Success       bool   `json:"success" example:"true"`
	ReservationID string `json:"reservation_id" example:"f1d2c3b4-a5e6-4789-8abc-def012345678"`
	Committed     int    `json:"committed" example:"2"`
}

// ReleaseReservationRequest HTTP释放请求
type ReleaseReservationRequest struct {
	Reason string `json:"reason" binding:"max=200" example:"顾客取消"`
}

// ReleaseReservationResponse HTTP释放响应
type ReleaseReservationResponse struct {
	Success        bool   `json:"success" example:"true"`
	ReservationID  string `json:"reservation_id" example:"f1d2c3b4-a5e6-4789-8abc-def012345678"`
	Released       int    `json:"released" example:"2"`
	AvailableStock int    `json:"available_stock" example:"10"`
}

// CreateInventoryRequest HTTP创建库存行请求
type CreateInventoryRequest struct {
	StoreID         string `json:"store_id" binding:"required,uuid" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Sku             string `json:"sku" binding:"required" example:"SKU12345"`
	InitialQuantity int    `json:"initial_quantity" binding:"min=0" example:"100"`
}

// CreateInventoryResponse HTTP创建库存行响应
type CreateInventoryResponse struct {
	ID        string `json:"id" example:"7a8b9c0d-1e2f-4a5b-8c9d-0e1f2a3b4c5d"`
	StoreID   string `json:"store_id" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Sku       string `json:"sku" example:"SKU12345"`
	Available int    `json:"available" example:"100"`
	Version   int64  `json:"version" example:"1"`
}

// ReplenishStockRequest HTTP单行补货请求
type ReplenishStockRequest struct {
	StoreID  string `json:"store_id" binding:"required,uuid" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Sku      string `json:"sku" binding:"required" example:"SKU12345"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=100000" example:"50"`
	Reason   string `json:"reason" binding:"max=200" example:"门店进货"`
}

// ReplenishStockResponse HTTP单行补货响应
type ReplenishStockResponse struct {
	Success        bool `json:"success" example:"true"`
	AvailableStock int  `json:"available_stock" example:"60"`
	TotalStock     int  `json:"total_stock" example:"65"`
}

// BulkReplenishLine 批量补货明细行
type BulkReplenishLine struct {
	Sku      string `json:"sku" binding:"required" example:"SKU12345"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=100000" example:"50"`
}

// BulkReplenishRequest HTTP批量补货请求
// 整批全有或全无：任意一行失败则已补的行被撤回
type BulkReplenishRequest struct {
	StoreID string              `json:"store_id" binding:"required,uuid" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Lines   []BulkReplenishLine `json:"lines" binding:"required,min=1,max=100,dive"`
	Reason  string              `json:"reason" binding:"max=200" example:"周期补货"`
}

// BulkReplenishResponse HTTP批量补货响应
type BulkReplenishResponse struct {
	Success bool `json:"success" example:"true"`
	Lines   int  `json:"lines" example:"3"`
}

// InventoryResponse HTTP库存视图
type InventoryResponse struct {
	ID          string `json:"id" example:"7a8b9c0d-1e2f-4a5b-8c9d-0e1f2a3b4c5d"`
	StoreID     string `json:"store_id" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Sku         string `json:"sku" example:"SKU12345"`
	Available   int    `json:"available" example:"8"`
	Reserved    int    `json:"reserved" example:"2"`
	Committed   int    `json:"committed" example:"5"`
	Total       int    `json:"total" example:"15"`
	Version     int64  `json:"version" example:"7"`
	LastUpdated string `json:"last_updated" example:"2024-11-06 10:30:00"`
}

// StoreInventoryResponse HTTP门店库存汇总
type StoreInventoryResponse struct {
	StoreID string              `json:"store_id" example:"0b9f9a1e-6f3c-4b5e-9c1d-2a8e7f6d5c4b"`
	Items   []InventoryResponse `json:"items"`
	Total   int                 `json:"total" example:"12"`
}

// SweepExpiredResponse HTTP过期预留回收响应
type SweepExpiredResponse struct {
	Scanned  int `json:"scanned" example:"5"`
	Released int `json:"released" example:"5"`
	Failed   int `json:"failed" example:"0"`
}
