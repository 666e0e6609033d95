package inventory

import (
	"time"

	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

// observeOp 记录一次库存操作的结果计数与耗时
func observeOp(operation, result string, start time.Time) {
	metrics.IncCounterVec(metrics.StockOperationsTotal, map[string]string{
		"operation": operation,
		"result":    result,
	})
	metrics.ObserveHistogramVec(metrics.StockOperationDuration, map[string]string{
		"operation": operation,
	}, time.Since(start).Seconds())
}
