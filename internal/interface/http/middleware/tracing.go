package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/xiebiao/retail-inventory/pkg/logger"
	"github.com/xiebiao/retail-inventory/pkg/tracing"
)

// Tracing 分布式追踪中间件
//
// 每个请求创建一个Span，Span名用路由模板（POST /api/v1/reservations），
// 动态路径参数进属性而不是Span名。trace_id写入访问日志字段，
// 排障时可从日志直接跳到Jaeger
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		spanName := c.Request.Method + " " + c.FullPath()
		if c.FullPath() == "" {
			spanName = c.Request.Method + " unmatched"
		}

		ctx, span := tracing.StartSpan(c.Request.Context(), "http", spanName)
		defer span.End()

		// 下游use case通过c.Request.Context()拿到带Span的ctx
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, "服务端错误")
		}

		if traceID := tracing.ExtractTraceID(ctx); traceID != "" && c.Writer.Status() >= 400 {
			logger.L().Debug("请求追踪标识",
				zap.String("trace_id", traceID),
				zap.String("span_id", tracing.ExtractSpanID(ctx)),
				zap.String("path", c.Request.URL.Path))
		}
	}
}
