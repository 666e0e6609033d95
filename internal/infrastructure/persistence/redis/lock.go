package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/logger"
)

// Lua脚本嵌入
// go:embed只能引用当前包目录内的文件，脚本与使用它的代码
// 放在一起也更内聚
//
//go:embed unlock.lua
var unlockLua string

// DistributedLock 基于Redis的分布式锁
//
// 设计说明：
// 1. SET NX + TTL获取：锁被占用时立即失败（不自旋），
//    获取失败对调用方可见，由调用方决定重试或放弃
// 2. token标识持有者：释放时用Lua脚本比较并删除，
//    防止锁过期后误删他人的锁
// 3. TTL是持有上限：锁内操作必须在TTL内完成，超时后锁
//    自动释放，原持有者的Release会失败（返回时记录日志）
//
// 适用场景：批量补货等跨多行的管理操作互斥。常规的
// 预留/提交路径走乐观锁，不经过这里
type DistributedLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, ttl time.Duration) *DistributedLock {
	return &DistributedLock{client: client, ttl: ttl}
}

// Acquire 尝试获取锁
// 成功返回持有者token；锁被占用返回ErrLockNotAcquired
func (l *DistributedLock) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.lockKey(key), token, l.ttl).Result()
	if err != nil {
		return "", apperrors.WrapCode(apperrors.ErrCodeRedisError, err, "获取分布式锁失败")
	}
	if !ok {
		return "", apperrors.ErrLockNotAcquired
	}

	return token, nil
}

// Release 释放锁（只有token匹配的持有者能释放）
func (l *DistributedLock) Release(ctx context.Context, key, token string) error {
	result, err := l.client.Eval(ctx, unlockLua, []string{l.lockKey(key)}, token).Int64()
	if err != nil {
		return apperrors.WrapCode(apperrors.ErrCodeRedisError, err, "释放分布式锁失败")
	}

	if result == 0 {
		// 锁已过期并可能被他人持有，说明锁内操作超过了TTL
		logger.L().Warn("释放锁时token不匹配，锁可能已过期",
			zap.String("key", key))
	}

	return nil
}

func (l *DistributedLock) lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
