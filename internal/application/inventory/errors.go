package inventory

import (
	"errors"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
)

// toAppError 领域错误 → 应用错误（带错误码，供HTTP层与重试分类使用）
// 未识别的错误包装为数据库错误（应用层触碰存储的路径居多）
func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return apperrors.ErrInsufficientStock
	case errors.Is(err, inventory.ErrInvalidReservationState):
		return apperrors.ErrInvalidReservationState
	case errors.Is(err, inventory.ErrReservationExpired):
		return apperrors.ErrReservationExpired
	case errors.Is(err, inventory.ErrReservationNotFound):
		return apperrors.ErrReservationNotFound
	case errors.Is(err, inventory.ErrInventoryNotFound):
		return apperrors.ErrInventoryNotFound
	case errors.Is(err, inventory.ErrInventoryExists):
		return apperrors.ErrInventoryExists
	case errors.Is(err, inventory.ErrVersionConflict):
		return apperrors.ErrConcurrencyConflict
	case errors.Is(err, inventory.ErrEmptySku),
		errors.Is(err, inventory.ErrInvalidSku),
		errors.Is(err, inventory.ErrNegativeQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return apperrors.WrapCode(apperrors.ErrCodeInvalidParams, err, err.Error())
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.WrapCode(apperrors.ErrCodeDatabaseError, err, "库存操作失败")
	}
}
