package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appinv "github.com/xiebiao/retail-inventory/internal/application/inventory"
	"github.com/xiebiao/retail-inventory/internal/interface/http/dto"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/response"
)

// InventoryHandler 库存HTTP处理器
// 薄适配层：参数绑定 → UUID解析 → 调用应用层用例 → 组装响应。
// 业务判定全部在应用层/领域层，这里不做任何库存逻辑
type InventoryHandler struct {
	reserveUseCase   *appinv.ReserveStockUseCase
	commitUseCase    *appinv.CommitStockUseCase
	releaseUseCase   *appinv.ReleaseReservationUseCase
	replenishUseCase *appinv.ReplenishStockUseCase
	createUseCase    *appinv.CreateInventoryUseCase
	getUseCase       *appinv.GetInventoryUseCase
	lowStockUseCase  *appinv.FindLowStockUseCase
	sweepUseCase     *appinv.ReleaseExpiredUseCase
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(
	reserveUseCase *appinv.ReserveStockUseCase,
	commitUseCase *appinv.CommitStockUseCase,
	releaseUseCase *appinv.ReleaseReservationUseCase,
	replenishUseCase *appinv.ReplenishStockUseCase,
	createUseCase *appinv.CreateInventoryUseCase,
	getUseCase *appinv.GetInventoryUseCase,
	lowStockUseCase *appinv.FindLowStockUseCase,
	sweepUseCase *appinv.ReleaseExpiredUseCase,
) *InventoryHandler {
	return &InventoryHandler{
		reserveUseCase:   reserveUseCase,
		commitUseCase:    commitUseCase,
		releaseUseCase:   releaseUseCase,
		replenishUseCase: replenishUseCase,
		createUseCase:    createUseCase,
		getUseCase:       getUseCase,
		lowStockUseCase:  lowStockUseCase,
		sweepUseCase:     sweepUseCase,
	}
}

// ReserveStock 预留库存
//
// POST /api/v1/reservations
//
// 防超卖的核心入口：应用层在乐观锁+重试+熔断的防护下搬运库存。
// 三种结果都走HTTP 200，客户端按code和success字段区分：
//   - success=true: 预留成功，返回reservation_id和过期时间
//   - success=false + message: 库存不足或服务降级（确定性拒绝）
//   - code!=0: 参数错误/预留不存在等
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	var req dto.ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
		return
	}

	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	result, err := h.reserveUseCase.Execute(c.Request.Context(), appinv.ReserveStockRequest{
		StoreID:  storeID,
		Sku:      req.Sku,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := &dto.ReserveStockResponse{
		Success:        result.Success,
		ReservationID:  result.ReservationID,
		RemainingStock: result.RemainingStock,
		Message:        result.Message,
	}
	if !result.ExpiresAt.IsZero() {
		resp.ExpiresAt = &result.ExpiresAt
	}
	response.Success(c, resp)
}

// CommitStock 提交预留（销售完成，预留量转已售出）
//
// POST /api/v1/reservations/:reservation_id/commit
func (h *InventoryHandler) CommitStock(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("reservation_id"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "reservation_id不是合法的UUID")
		return
	}

	var req dto.CommitStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
		return
	}
	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "transaction_id不是合法的UUID")
		return
	}

	result, err := h.commitUseCase.Execute(c.Request.Context(), appinv.CommitStockRequest{
		ReservationID: reservationID,
		TransactionID: transactionID,
		CustomerID:    req.CustomerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.CommitStockResponse{
		Success:       result.Success,
		ReservationID: result.ReservationID,
		Committed:     result.Committed,
	})
}

// ReleaseReservation 释放预留（顾客取消，预留量退回可用）
//
// POST /api/v1/reservations/:reservation_id/release
func (h *InventoryHandler) ReleaseReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("reservation_id"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "reservation_id不是合法的UUID")
		return
	}

	// 释放请求体可为空（reason可选）
	var req dto.ReleaseReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
			return
		}
	}

	result, err := h.releaseUseCase.Execute(c.Request.Context(), appinv.ReleaseReservationRequest{
		ReservationID: reservationID,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.ReleaseReservationResponse{
		Success:        result.Success,
		ReservationID:  result.ReservationID,
		Released:       result.Released,
		AvailableStock: result.AvailableStock,
	})
}

// CreateInventory 门店上新SKU（建库存行）
//
// POST /api/v1/inventory
func (h *InventoryHandler) CreateInventory(c *gin.Context) {
	var req dto.CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	result, err := h.createUseCase.Execute(c.Request.Context(), appinv.CreateInventoryRequest{
		StoreID:         storeID,
		Sku:             req.Sku,
		InitialQuantity: req.InitialQuantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.CreateInventoryResponse{
		ID:        result.ID,
		StoreID:   result.StoreID,
		Sku:       result.Sku,
		Available: result.Available,
		Version:   result.Version,
	})
}

// GetInventory 查询单行库存（cache-aside读路径）
//
// GET /api/v1/stores/:store_id/inventory/:sku
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("store_id"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	view, err := h.getUseCase.Execute(c.Request.Context(), storeID, c.Param("sku"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toInventoryResponse(view))
}

// GetStoreInventory 查询门店全部库存（走门店汇总缓存）
//
// GET /api/v1/stores/:store_id/inventory
func (h *InventoryHandler) GetStoreInventory(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("store_id"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	views, err := h.getUseCase.ExecuteStore(c.Request.Context(), storeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.InventoryResponse, 0, len(views))
	for _, view := range views {
		items = append(items, *toInventoryResponse(view))
	}
	response.Success(c, &dto.StoreInventoryResponse{
		StoreID: storeID.String(),
		Items:   items,
		Total:   len(items),
	})
}

// FindLowStock 低库存查询（补货决策输入）
//
// GET /api/v1/stores/:store_id/low-stock?threshold=10
func (h *InventoryHandler) FindLowStock(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("store_id"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "threshold必须是整数")
		return
	}

	views, err := h.lowStockUseCase.Execute(c.Request.Context(), storeID, threshold)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.InventoryResponse, 0, len(views))
	for _, view := range views {
		items = append(items, *toInventoryResponse(view))
	}
	response.Success(c, items)
}

// ReplenishStock 单行补货
//
// POST /api/v1/inventory/replenish
func (h *InventoryHandler) ReplenishStock(c *gin.Context) {
	var req dto.ReplenishStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	result, err := h.replenishUseCase.Execute(c.Request.Context(), appinv.ReplenishStockRequest{
		StoreID:  storeID,
		Sku:      req.Sku,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.ReplenishStockResponse{
		Success:        result.Success,
		AvailableStock: result.AvailableStock,
		TotalStock:     result.TotalStock,
	})
}

// BulkReplenish 批量补货（门店锁互斥 + 失败补偿撤回）
//
// POST /api/v1/inventory/replenish/bulk
func (h *InventoryHandler) BulkReplenish(c *gin.Context) {
	var req dto.BulkReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeBindError, "参数错误: "+err.Error())
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "store_id不是合法的UUID")
		return
	}

	lines := make([]appinv.BulkReplenishLine, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = appinv.BulkReplenishLine{
			Sku:      line.Sku,
			Quantity: line.Quantity,
		}
	}

	result, err := h.replenishUseCase.ExecuteBulk(c.Request.Context(), appinv.BulkReplenishRequest{
		StoreID: storeID,
		Lines:   lines,
		Reason:  req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.BulkReplenishResponse{
		Success: result.Success,
		Lines:   result.Lines,
	})
}

// SweepExpired 手动触发一轮过期预留回收
// 常规回收由后台定时任务驱动，此接口供运维排查和补偿使用
//
// POST /api/v1/reservations/sweep-expired?limit=100
func (h *InventoryHandler) SweepExpired(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "limit必须是正整数")
		return
	}

	result, err := h.sweepUseCase.Execute(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.SweepExpiredResponse{
		Scanned:  result.Scanned,
		Released: result.Released,
		Failed:   result.Failed,
	})
}

func toInventoryResponse(view *appinv.InventoryView) *dto.InventoryResponse {
	return &dto.InventoryResponse{
		ID:          view.ID,
		StoreID:     view.StoreID,
		Sku:         view.Sku,
		Available:   view.Available,
		Reserved:    view.Reserved,
		Committed:   view.Committed,
		Total:       view.Total,
		Version:     view.Version,
		LastUpdated: view.LastUpdated.Format(time.DateTime),
	}
}
