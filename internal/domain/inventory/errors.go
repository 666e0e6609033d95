package inventory

import "errors"

// 领域错误定义
//
// 错误分类：
// 1. 参数校验错误：进入领域前就拒绝，不产生任何副作用
// 2. 业务规则错误：确定性失败（库存不足、预留状态非法），调用方不应重试
// 3. 并发冲突：乐观锁版本不一致，应用层有界重试后再上报
var (
	// 参数校验错误
	ErrEmptySku         = errors.New("SKU不能为空")
	ErrInvalidSku       = errors.New("SKU格式错误（必须是8-12位大写字母或数字）")
	ErrNegativeQuantity = errors.New("数量不能为负数")
	ErrInvalidQuantity  = errors.New("数量必须大于0")

	// 业务规则错误
	ErrInsufficientStock       = errors.New("可用库存不足")
	ErrInvalidReservationState = errors.New("预留状态不允许此操作")
	ErrReservationExpired      = errors.New("预留已过期")
	ErrReservationNotFound     = errors.New("预留记录不存在")
	ErrInventoryNotFound       = errors.New("库存记录不存在")
	ErrInventoryExists         = errors.New("库存记录已存在")

	// 并发冲突（乐观锁版本不匹配）
	ErrVersionConflict = errors.New("版本冲突：库存已被其他请求修改")
)
