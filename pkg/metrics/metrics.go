// Package metrics 提供基于Prometheus的指标收集
//
// 指标类型约定：
// - Counter（只增不减）：预留/确认/释放总数、缓存命中/未命中、消息发布数
// - Gauge（瞬时值）：熔断器状态、处理中的请求数
// - Histogram（分布）：库存操作耗时、消息发布耗时
//
// 命名规范：
// - Counter以`_total`结尾
// - Histogram以单位结尾（`_seconds`）
// - 避免高基数标签（不要用reservation_id、customer_id做标签）
//
// 使用方式：
//
//	metrics.InitMetrics()
//	http.Handle("/metrics", promhttp.Handler())
//
//	metrics.IncCounterVec(metrics.StockOperationsTotal, map[string]string{
//	    "operation": "reserve",
//	    "result":    "success",
//	})
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// initialized 标记是否已初始化（防止重复注册）
	initialized bool

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数（Counter）
	// 标签：method（GET/POST）、path（/api/v1/inventory/reserve）、status（200/409）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时（Histogram）
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数（Gauge）
	HTTPRequestsInProgress prometheus.Gauge

	// 库存业务指标

	// StockOperationsTotal 库存操作总数（Counter）
	// 标签：operation（reserve/commit/release/replenish）、result（success/insufficient/conflict/failure）
	StockOperationsTotal *prometheus.CounterVec

	// StockOperationDuration 库存操作耗时（Histogram）
	// 标签：operation
	StockOperationDuration *prometheus.HistogramVec

	// ReservationsExpiredTotal 过期清扫释放的预留总数（Counter）
	ReservationsExpiredTotal prometheus.Counter

	// VersionConflictsTotal 乐观锁冲突总数（Counter）
	// 冲突率持续偏高说明热点SKU竞争激烈，考虑拆分库存行
	VersionConflictsTotal prometheus.Counter

	// 缓存指标

	// CacheHitsTotal 缓存命中总数（Counter）
	CacheHitsTotal prometheus.Counter

	// CacheMissesTotal 缓存未命中总数（Counter）
	CacheMissesTotal prometheus.Counter

	// CacheErrorsTotal 缓存访问出错总数（Counter）
	// 出错按未命中降级处理，该计数用于发现Redis异常
	CacheErrorsTotal prometheus.Counter

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 熔断器请求总数（Counter）
	// 标签：name（熔断器名称）、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// 消息队列指标

	// EventsPublishedTotal 领域事件发布总数（Counter）
	// 标签：event_type、result（success/failure）
	EventsPublishedTotal *prometheus.CounterVec

	// EventPublishDuration 事件发布耗时（Histogram）
	EventPublishDuration prometheus.Histogram

	// Saga指标

	// SagaExecutionsTotal Saga执行总数（Counter）
	// 标签：result（success/failure）
	SagaExecutionsTotal *prometheus.CounterVec

	// SagaCompensationsTotal Saga补偿执行总数（Counter）
	SagaCompensationsTotal prometheus.Counter
)

// InitMetrics 初始化所有Prometheus指标
//
// 必须在程序启动时调用一次，使用promauto注册到默认Registry
func InitMetrics() {
	// 防止重复初始化
	if initialized {
		return
	}
	initialized = true

	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP请求耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "正在处理的HTTP请求数",
		},
	)

	// 库存业务指标
	StockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_operations_total",
			Help: "库存操作总数",
		},
		[]string{"operation", "result"},
	)

	StockOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "stock_operation_duration_seconds",
			Help: "库存操作耗时（秒）",
			// 含重试时可能较慢，桶上限放宽到5s
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	ReservationsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_expired_total",
			Help: "过期清扫释放的预留总数",
		},
	)

	VersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "乐观锁版本冲突总数",
		},
	)

	// 缓存指标
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_cache_hits_total",
			Help: "库存缓存命中总数",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_cache_misses_total",
			Help: "库存缓存未命中总数",
		},
	)

	CacheErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_cache_errors_total",
			Help: "库存缓存访问出错总数",
		},
	)

	// 熔断器指标
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "熔断器请求总数",
		},
		[]string{"name", "result"},
	)

	// 消息队列指标
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "领域事件发布总数",
		},
		[]string{"event_type", "result"},
	)

	EventPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_publish_duration_seconds",
			Help:    "事件发布耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	// Saga指标
	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_executions_total",
			Help: "Saga执行总数",
		},
		[]string{"result"},
	)

	SagaCompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Saga补偿执行总数",
		},
	)
}

// IncCounter 递增Counter（便捷函数）
func IncCounter(counter prometheus.Counter) {
	counter.Inc()
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}
