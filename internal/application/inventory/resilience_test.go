package inventory

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

// breakerRequests 读取指定name+result的熔断器请求计数
func breakerRequests(t *testing.T, name, result string) float64 {
	t.Helper()
	var m dto.Metric
	counter := metrics.CircuitBreakerRequests.With(map[string]string{
		"name": name, "result": result,
	})
	require.NoError(t, counter.Write(&m))
	return m.Counter.GetValue()
}

// TestGuard_BreakerRequestMetrics 每次经过熔断器的请求都计数
// 分类与熔断器的成功判定一致：业务错误算success不算failure，
// 被打开的熔断器挡下的请求算rejected
func TestGuard_BreakerRequestMetrics(t *testing.T) {
	guard := NewGuard("metrics-count-guard", testResilienceConfig(1, 3))

	// 成功请求
	require.NoError(t, guard.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	assert.Equal(t, float64(1), breakerRequests(t, "metrics-count-guard", "success"))

	// 业务错误：原样返回但计为success
	err := guard.Execute(context.Background(), func(ctx context.Context) error {
		return apperrors.ErrInsufficientStock
	})
	require.Error(t, err)
	assert.Equal(t, float64(2), breakerRequests(t, "metrics-count-guard", "success"))

	// 基础设施故障：连续3次把熔断器推开，每次都计failure
	for i := 0; i < 3; i++ {
		_ = guard.Execute(context.Background(), func(ctx context.Context) error {
			return apperrors.ErrDatabaseError
		})
	}
	assert.Equal(t, float64(3), breakerRequests(t, "metrics-count-guard", "failure"))

	// 熔断打开后的请求被拒绝，计rejected
	err = guard.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnavailable, apperrors.GetAppError(err).Code)
	assert.GreaterOrEqual(t, breakerRequests(t, "metrics-count-guard", "rejected"), float64(1))
}

// TestGuard_OpensWithDefaultConfig 默认配置下连续故障必须触发熔断
// 未配置统计窗口（零值）时失败计数不得被悄悄重置，
// 否则熔断器永远攒不满阈值，降级路径形同虚设
func TestGuard_OpensWithDefaultConfig(t *testing.T) {
	guard := NewGuard("default-interval-guard", testResilienceConfig(1, 5))

	infraErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		_ = guard.Execute(context.Background(), func(ctx context.Context) error {
			return apperrors.WrapCode(apperrors.ErrCodeDatabaseError, infraErr, "数据库错误")
		})
	}

	called := false
	err := guard.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err, "连续5次基础设施故障后熔断器必须打开")
	assert.Equal(t, apperrors.ErrCodeUnavailable, apperrors.GetAppError(err).Code)
	assert.False(t, called, "熔断打开期间不应触达受保护操作")
	assert.True(t, IsUnavailable(err))
}
