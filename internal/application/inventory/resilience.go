package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/xiebiao/retail-inventory/internal/infrastructure/config"
	"github.com/xiebiao/retail-inventory/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
	"github.com/xiebiao/retail-inventory/pkg/retry"
)

// Guard 库存操作的弹性防护：重试包在熔断器外面
//
// 执行链：retry( circuitbreaker( op ) )
//
// 这个嵌套顺序是关键：
// 1. 每次重试都要经过熔断器检查——操作反复失败把熔断器推开后，
//    后续重试立刻被ErrOpenState拒绝，不再打到故障存储上
// 2. ErrOpenState分类为不可重试，打开的熔断器不消耗重试预算，
//    调用方直接走降级路径
// 3. 业务规则错误（库存不足、预留过期）既不重试也不计入熔断器
//    失败统计：它们是确定性结果，不代表基础设施故障
//
// 重试的前提：op每次执行都必须重新读取最新状态（read-modify-write
// 整体重放），绝不能重放旧的内存副本
type Guard struct {
	policy  retry.Policy
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuard 创建弹性防护
// name用于熔断器指标标签（如 inventory-db）
func NewGuard(name string, cfg config.ResilienceConfig) *Guard {
	breaker := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// 业务错误与乐观锁冲突视为成功：前者是确定性结果，
		// 后者是热点竞争，都不代表基础设施故障
		IsSuccessful: func(err error) bool {
			return err == nil ||
				apperrors.IsBusinessError(err) ||
				errors.Is(err, apperrors.ErrConcurrencyConflict)
		},
	})

	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		if metrics.CircuitBreakerState != nil {
			metrics.SetGaugeVec(metrics.CircuitBreakerState,
				map[string]string{"name": name}, float64(to))
		}
	})

	policy := retry.Policy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryBackoff,
		BackoffFactor:  2,
		MaxBackoff:     time.Second,
		Classify:       isRetryable,
	}

	return &Guard{policy: policy, breaker: breaker}
}

// Execute 在防护下执行op
// 熔断器打开时返回ErrCodeUnavailable错误（包装ErrOpenState），
// 调用方据此走降级响应
func (g *Guard) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		attemptErr := g.breaker.Execute(func() error {
			return op(ctx)
		})
		g.observeAttempt(attemptErr)
		return attemptErr
	})

	if errors.Is(err, circuitbreaker.ErrOpenState) {
		return apperrors.WrapCode(apperrors.ErrCodeUnavailable, err, "服务暂时不可用，请稍后重试")
	}
	return err
}

// observeAttempt 按次记录熔断器请求结果
// 分类与IsSuccessful保持一致：业务错误和乐观锁冲突算success，
// 被打开的熔断器挡下算rejected，其余算failure
func (g *Guard) observeAttempt(err error) {
	if metrics.CircuitBreakerRequests == nil {
		return
	}

	result := "success"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState):
		result = "rejected"
	case err != nil &&
		!apperrors.IsBusinessError(err) &&
		!errors.Is(err, apperrors.ErrConcurrencyConflict):
		result = "failure"
	}

	metrics.IncCounterVec(metrics.CircuitBreakerRequests, map[string]string{
		"name":   g.breaker.Name(),
		"result": result,
	})
}

// Breaker 暴露熔断器（状态查询）
func (g *Guard) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

// isRetryable 重试分类
// 可重试：乐观锁冲突、基础设施瞬时故障
// 不可重试：业务规则错误（确定性失败）、熔断器打开、参数错误
func isRetryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrOpenState) {
		return false
	}
	if apperrors.IsBusinessError(err) {
		return false
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrCodeConcurrencyConflict,
			apperrors.ErrCodeDatabaseError,
			apperrors.ErrCodeRedisError:
			return true
		case apperrors.ErrCodeInvalidParams, apperrors.ErrCodeBindError:
			return false
		}
	}

	// 未分类错误按瞬时故障处理
	return true
}

// IsUnavailable 判断错误是否表示防护降级（熔断器打开）
func IsUnavailable(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpenState)
}
