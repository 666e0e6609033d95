package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不要直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端（防止泄露敏感信息）
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 用户友好的错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// WrapCode 用指定错误码包装底层错误
func WrapCode(code int, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（数据库异常、依赖服务不可用）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal      = 50000 // 内部错误
	ErrCodeDatabaseError = 50001 // 数据库错误
	ErrCodeRedisError    = 50002 // Redis错误
	ErrCodeMQError       = 50003 // 消息队列错误
	ErrCodeUnavailable   = 50010 // 服务暂时不可用（熔断器打开，降级响应）

	// 资源错误（40400-40499）
	ErrCodeNotFound            = 40400 // 资源不存在(通用)
	ErrCodeInventoryNotFound   = 40401 // 库存记录不存在
	ErrCodeReservationNotFound = 40402 // 预留记录不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError           = 40000 // 业务错误(通用)
	ErrCodeInsufficientStock       = 40001 // 可用库存不足
	ErrCodeInvalidReservationState = 40002 // 预留状态非法
	ErrCodeReservationExpired      = 40003 // 预留已过期
	ErrCodeInventoryExists         = 40004 // 库存记录已存在

	// 并发控制错误（40900-40999，与参数错误同段但语义独立）
	ErrCodeConcurrencyConflict = 40910 // 乐观锁冲突（重试耗尽）
	ErrCodeLockNotAcquired     = 40911 // 分布式锁获取失败

	// 参数错误（40900-40909）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeBindError     = 40901 // 参数绑定失败
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")
	ErrMQError       = New(ErrCodeMQError, "消息队列错误")
	ErrUnavailable   = New(ErrCodeUnavailable, "服务暂时不可用，请稍后重试")

	// 资源不存在
	ErrInventoryNotFound   = New(ErrCodeInventoryNotFound, "库存记录不存在")
	ErrReservationNotFound = New(ErrCodeReservationNotFound, "预留记录不存在")

	// 业务规则
	ErrInsufficientStock       = New(ErrCodeInsufficientStock, "可用库存不足")
	ErrInvalidReservationState = New(ErrCodeInvalidReservationState, "预留状态不允许此操作")
	ErrReservationExpired      = New(ErrCodeReservationExpired, "预留已过期")
	ErrInventoryExists         = New(ErrCodeInventoryExists, "该门店已存在此SKU的库存记录")

	// 并发控制
	ErrConcurrencyConflict = New(ErrCodeConcurrencyConflict, "操作冲突，请重试")
	ErrLockNotAcquired     = New(ErrCodeLockNotAcquired, "资源正忙，请稍后重试")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// IsBusinessError 判断是否为确定性的业务规则错误
// 业务错误不应触发重试，也不应计入熔断器的失败统计
func IsBusinessError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code >= 40000 && appErr.Code < 50000 &&
		appErr.Code != ErrCodeConcurrencyConflict
}
