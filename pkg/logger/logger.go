// Package logger 提供基于zap的结构化日志
//
// 为什么用zap而不是标准库log？
// 1. 结构化字段（JSON格式），便于日志平台检索与聚合
// 2. 分级输出（debug/info/warn/error），生产环境可只保留info以上
// 3. 零分配设计，高并发路径上开销可忽略
//
// 使用方式：
//
//	logger.Init(logger.Options{Level: "info", Format: "json", Output: "stdout"})
//	logger.L().Info("库存预留成功",
//	    zap.String("store_id", storeID.String()),
//	    zap.String("product_sku", sku),
//	    zap.Int("quantity", qty),
//	)
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
// 与config.yaml中的log段一一对应
type Options struct {
	Level        string // debug | info | warn | error
	Format       string // console | json
	Output       string // stdout | stderr | 文件路径
	EnableCaller bool   // 是否记录调用位置
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init 初始化全局日志器
// 必须在main中最先调用；未初始化时L()返回Nop日志器（静默丢弃）
func Init(opts Options) error {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", opts.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch opts.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer
	switch opts.Output {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	case "stderr":
		sink = zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, sink, level)

	zapOpts := []zap.Option{}
	if opts.EnableCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}

	mu.Lock()
	global = zap.New(core, zapOpts...)
	mu.Unlock()

	return nil
}

// L 返回全局日志器
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync 刷新缓冲的日志（程序退出前调用）
func Sync() {
	_ = L().Sync()
}
