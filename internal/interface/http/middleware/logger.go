package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiebiao/retail-inventory/pkg/logger"
)

// AccessLog 访问日志中间件（zap结构化输出）
// 替代gin.Logger()的文本日志，字段可被日志采集直接索引
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.L().Error("http请求", fields...)
		case c.Writer.Status() >= 400:
			logger.L().Warn("http请求", fields...)
		default:
			logger.L().Info("http请求", fields...)
		}
	}
}

// Recovery panic恢复中间件
// panic只打日志并返回500，不让单个请求拖垮进程
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L().Error("http请求panic",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    50000,
					"message": "系统内部错误",
				})
			}
		}()
		c.Next()
	}
}
