package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
)

// TestReplenishStock_Success 单行补货
func TestReplenishStock_Success(t *testing.T) {
	f := newFixture(5)
	uc := f.replenishUC()

	resp, err := uc.Execute(context.Background(), ReplenishStockRequest{
		StoreID:  f.storeID,
		Sku:      "SKU12345",
		Quantity: 20,
		Reason:   "门店进货",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 25, resp.AvailableStock)
	assert.Equal(t, 25, resp.TotalStock)

	inv := f.repo.snapshot(f.storeID, f.sku)
	assert.Equal(t, 25, inv.AvailableQuantity.Int())
	assert.NotEmpty(t, f.cache.invalidated, "补货后缓存应失效")
}

// TestReplenishStock_InvalidQuantity 非正数量拒绝
func TestReplenishStock_InvalidQuantity(t *testing.T) {
	f := newFixture(5)
	uc := f.replenishUC()

	_, err := uc.Execute(context.Background(), ReplenishStockRequest{
		StoreID:  f.storeID,
		Sku:      "SKU12345",
		Quantity: 0,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidParams, apperrors.GetAppError(err).Code)
}

// TestBulkReplenish_Success 批量补货全部成功
func TestBulkReplenish_Success(t *testing.T) {
	f := newFixture(5)

	// 第二条库存行
	sku2, err := domain.NewProductSku("SKU67890")
	require.NoError(t, err)
	qty, _ := domain.NewQuantity(3)
	require.NoError(t, f.repo.Create(context.Background(), domain.NewInventory(f.storeID, sku2, qty)))

	resp, err := f.replenishUC().ExecuteBulk(context.Background(), BulkReplenishRequest{
		StoreID: f.storeID,
		Lines: []BulkReplenishLine{
			{Sku: "SKU12345", Quantity: 10},
			{Sku: "SKU67890", Quantity: 7},
		},
		Reason: "周期补货",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Lines)

	assert.Equal(t, 15, f.repo.snapshot(f.storeID, f.sku).AvailableQuantity.Int())
	assert.Equal(t, 10, f.repo.snapshot(f.storeID, sku2).AvailableQuantity.Int())
}

// TestBulkReplenish_CompensateOnFailure 中途失败时撤回已补的行
func TestBulkReplenish_CompensateOnFailure(t *testing.T) {
	f := newFixture(5)

	resp, err := f.replenishUC().ExecuteBulk(context.Background(), BulkReplenishRequest{
		StoreID: f.storeID,
		Lines: []BulkReplenishLine{
			{Sku: "SKU12345", Quantity: 10},
			{Sku: "MISSING999", Quantity: 7}, // 库存行不存在，该步骤失败
		},
		Reason: "周期补货",
	})

	require.Error(t, err)
	assert.Nil(t, resp)

	// 第一行已补的10件被补偿撤回
	inv := f.repo.snapshot(f.storeID, f.sku)
	assert.Equal(t, 5, inv.AvailableQuantity.Int(), "失败后已补数量应被撤回")
}

// TestBulkReplenish_LockContention 同门店并发批量补货互斥
func TestBulkReplenish_LockContention(t *testing.T) {
	f := newFixture(5)

	// 预先占住门店锁，模拟另一批补货进行中
	lockKey := "replenish:" + f.storeID.String()
	_, err := f.locker.Acquire(context.Background(), lockKey)
	require.NoError(t, err)

	_, err = f.replenishUC().ExecuteBulk(context.Background(), BulkReplenishRequest{
		StoreID: f.storeID,
		Lines:   []BulkReplenishLine{{Sku: "SKU12345", Quantity: 10}},
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockNotAcquired, apperrors.GetAppError(err).Code)

	// 没有任何写入
	assert.Equal(t, 5, f.repo.snapshot(f.storeID, f.sku).AvailableQuantity.Int())
}

// TestBulkReplenish_ValidatesBeforeLock 参数非法时不进入锁
func TestBulkReplenish_ValidatesBeforeLock(t *testing.T) {
	f := newFixture(5)

	_, err := f.replenishUC().ExecuteBulk(context.Background(), BulkReplenishRequest{
		StoreID: f.storeID,
		Lines:   []BulkReplenishLine{{Sku: "bad!", Quantity: 10}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidParams, apperrors.GetAppError(err).Code)

	// 锁未被占用
	token, err := f.locker.Acquire(context.Background(), "replenish:"+f.storeID.String())
	require.NoError(t, err, "校验失败不应留下残留锁")
	_ = f.locker.Release(context.Background(), "replenish:"+f.storeID.String(), token)
}
