package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/pkg/logger"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

// InventoryCache 库存快照缓存（cache-aside）
//
// 设计说明：
// 1. 存储完整聚合快照（含version），不是单独的数量字段
// 2. Key设计：
//    - inventory:{store_id}:{sku}          单行快照
//    - inventory:store:{store_id}          门店汇总（派生视图）
// 3. 一致性策略：写路径落库成功后同步失效（DEL），不回写新值；
//    下一次读miss后回源重建。单行失效时连带失效门店汇总
// 4. 降级策略：任何Redis错误都当作miss处理，读写路径绝不因
//    缓存故障而失败，只记录日志与错误计数
type InventoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInventoryCache 创建库存缓存
func NewInventoryCache(client *redis.Client, ttl time.Duration) *InventoryCache {
	return &InventoryCache{client: client, ttl: ttl}
}

// cachedInventory 缓存中的库存快照
type cachedInventory struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	ProductSku  string    `json:"product_sku"`
	Available   int       `json:"available"`
	Reserved    int       `json:"reserved"`
	Committed   int       `json:"committed"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Get 读取库存快照
// 返回(nil, false)表示miss（包括Redis出错的降级场景）
func (c *InventoryCache) Get(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku) (*inventory.Inventory, bool) {
	key := c.itemKey(storeID, sku)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.IncCounter(metrics.CacheMissesTotal)
			return nil, false
		}
		// Redis故障降级为miss
		metrics.IncCounter(metrics.CacheErrorsTotal)
		logger.L().Warn("读取库存缓存失败，降级回源",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var snapshot cachedInventory
	if err := json.Unmarshal(data, &snapshot); err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		logger.L().Warn("库存缓存数据损坏，删除后回源",
			zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false
	}

	entity, err := toEntity(&snapshot)
	if err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		c.client.Del(ctx, key)
		return nil, false
	}

	metrics.IncCounter(metrics.CacheHitsTotal)
	return entity, true
}

// Set 写入库存快照（读路径miss回源后调用）
func (c *InventoryCache) Set(ctx context.Context, inv *inventory.Inventory) {
	key := c.itemKey(inv.StoreID, inv.ProductSku)

	data, err := json.Marshal(toSnapshot(inv))
	if err != nil {
		logger.L().Warn("序列化库存快照失败", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		logger.L().Warn("写入库存缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 同步失效单行快照与门店汇总
// 在库存落库成功之后、响应返回之前调用
func (c *InventoryCache) Invalidate(ctx context.Context, storeID uuid.UUID, sku inventory.ProductSku) {
	keys := []string{
		c.itemKey(storeID, sku),
		c.storeKey(storeID),
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		// 失效失败只能靠TTL兜底，记录告警
		logger.L().Warn("库存缓存失效失败，等待TTL过期",
			zap.Strings("keys", keys), zap.Error(err))
	}
}

// GetStoreSummary 读取门店汇总快照
func (c *InventoryCache) GetStoreSummary(ctx context.Context, storeID uuid.UUID) ([]*inventory.Inventory, bool) {
	key := c.storeKey(storeID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.IncCounter(metrics.CacheMissesTotal)
		} else {
			metrics.IncCounter(metrics.CacheErrorsTotal)
			logger.L().Warn("读取门店汇总缓存失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var snapshots []cachedInventory
	if err := json.Unmarshal(data, &snapshots); err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		c.client.Del(ctx, key)
		return nil, false
	}

	out := make([]*inventory.Inventory, 0, len(snapshots))
	for i := range snapshots {
		entity, err := toEntity(&snapshots[i])
		if err != nil {
			metrics.IncCounter(metrics.CacheErrorsTotal)
			c.client.Del(ctx, key)
			return nil, false
		}
		out = append(out, entity)
	}

	metrics.IncCounter(metrics.CacheHitsTotal)
	return out, true
}

// SetStoreSummary 写入门店汇总快照
func (c *InventoryCache) SetStoreSummary(ctx context.Context, storeID uuid.UUID, items []*inventory.Inventory) {
	key := c.storeKey(storeID)

	snapshots := make([]cachedInventory, 0, len(items))
	for _, inv := range items {
		snapshots = append(snapshots, *toSnapshot(inv))
	}

	data, err := json.Marshal(snapshots)
	if err != nil {
		logger.L().Warn("序列化门店汇总失败", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		metrics.IncCounter(metrics.CacheErrorsTotal)
		logger.L().Warn("写入门店汇总缓存失败", zap.String("key", key), zap.Error(err))
	}
}

func (c *InventoryCache) itemKey(storeID uuid.UUID, sku inventory.ProductSku) string {
	return fmt.Sprintf("inventory:%s:%s", storeID.String(), string(sku))
}

func (c *InventoryCache) storeKey(storeID uuid.UUID) string {
	return fmt.Sprintf("inventory:store:%s", storeID.String())
}

func toSnapshot(inv *inventory.Inventory) *cachedInventory {
	return &cachedInventory{
		ID:          inv.ID.String(),
		StoreID:     inv.StoreID.String(),
		ProductSku:  string(inv.ProductSku),
		Available:   inv.AvailableQuantity.Int(),
		Reserved:    inv.ReservedQuantity.Int(),
		Committed:   inv.CommittedQuantity.Int(),
		Version:     inv.Version,
		LastUpdated: inv.LastUpdated,
	}
}

func toEntity(s *cachedInventory) (*inventory.Inventory, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, err
	}
	storeID, err := uuid.Parse(s.StoreID)
	if err != nil {
		return nil, err
	}
	available, err := inventory.NewQuantity(s.Available)
	if err != nil {
		return nil, err
	}
	reserved, err := inventory.NewQuantity(s.Reserved)
	if err != nil {
		return nil, err
	}
	committed, err := inventory.NewQuantity(s.Committed)
	if err != nil {
		return nil, err
	}

	return inventory.ReconstituteInventory(
		id, storeID, inventory.ProductSku(s.ProductSku),
		available, reserved, committed,
		s.LastUpdated, s.Version,
	), nil
}
