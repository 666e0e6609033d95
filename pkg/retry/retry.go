// Package retry 提供带指数退避的有界重试
//
// 适用范围：
//   - 瞬时性故障（网络抖动、连接池耗尽、乐观锁版本冲突）
//   - 每次重试前必须重新读取最新状态，绝不能重放旧的内存副本
//
// 不适用范围：
//   - 确定性的业务规则错误（库存不足、预留过期），重试只会得到
//     同样的结果并放大存储压力，由Classify排除
package retry

import (
	"context"
	"time"
)

// Policy 重试策略
type Policy struct {
	// MaxAttempts 最大尝试次数（含首次），最小为1
	MaxAttempts int

	// InitialBackoff 首次重试前的等待时间
	InitialBackoff time.Duration

	// BackoffFactor 每次重试等待时间的放大倍数（指数退避）
	BackoffFactor float64

	// MaxBackoff 等待时间上限，0表示不限制
	MaxBackoff time.Duration

	// Classify 错误分类器：返回true表示可重试
	// 为nil时所有非nil错误都重试
	Classify func(err error) bool
}

// DefaultPolicy 默认策略：3次尝试，50ms起步，倍率2
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		BackoffFactor:  2,
		MaxBackoff:     time.Second,
	}
}

// Do 按策略执行op直到成功、不可重试或次数耗尽
// 返回最后一次的错误；ctx取消时立即停止并返回ctx.Err()
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if policy.Classify != nil && !policy.Classify(lastErr) {
			// 不可重试的错误原样上报
			return lastErr
		}

		if attempt == attempts {
			break
		}

		// 指数退避等待，期间响应ctx取消
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			backoff = time.Duration(float64(backoff) * policy.BackoffFactor)
			if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
				backoff = policy.MaxBackoff
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}
