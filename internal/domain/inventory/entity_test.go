package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSku(t *testing.T, value string) ProductSku {
	t.Helper()
	sku, err := NewProductSku(value)
	require.NoError(t, err)
	return sku
}

func mustQty(t *testing.T, value int) Quantity {
	t.Helper()
	q, err := NewQuantity(value)
	require.NoError(t, err)
	return q
}

func newTestInventory(t *testing.T, available int) *Inventory {
	t.Helper()
	return NewInventory(uuid.New(), mustSku(t, "SKU12345"), mustQty(t, available))
}

func TestNewInventory(t *testing.T) {
	inv := newTestInventory(t, 10)

	assert.NotEqual(t, uuid.Nil, inv.ID)
	assert.Equal(t, 10, inv.AvailableQuantity.Int())
	assert.Equal(t, 0, inv.ReservedQuantity.Int())
	assert.Equal(t, 0, inv.CommittedQuantity.Int())
	assert.Equal(t, int64(1), inv.Version)
	assert.Empty(t, inv.Events())
}

func TestReserveStock(t *testing.T) {
	t.Run("成功-数量搬运available到reserved", func(t *testing.T) {
		inv := newTestInventory(t, 10)

		res, err := inv.ReserveStock(mustQty(t, 3), uuid.New(), "下单")
		require.NoError(t, err)

		assert.Equal(t, 7, inv.AvailableQuantity.Int())
		assert.Equal(t, 3, inv.ReservedQuantity.Int())
		assert.Equal(t, 10, inv.TotalQuantity().Int(), "总量不变")

		require.NotNil(t, res)
		assert.Equal(t, StatusActive, res.Status)
		assert.Equal(t, 3, res.Quantity.Int())
		assert.Equal(t, inv.StoreID, res.StoreID)

		events := inv.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventStockReserved, events[0].EventType)
		assert.Equal(t, res.ReservationID, events[0].ReservationID)
	})

	t.Run("可用库存不足", func(t *testing.T) {
		inv := newTestInventory(t, 2)

		_, err := inv.ReserveStock(mustQty(t, 3), uuid.New(), "下单")
		assert.ErrorIs(t, err, ErrInsufficientStock)

		// 失败时状态无任何变化
		assert.Equal(t, 2, inv.AvailableQuantity.Int())
		assert.Equal(t, 0, inv.ReservedQuantity.Int())
		assert.Empty(t, inv.Events())
	})

	t.Run("恰好预留完全部可用库存", func(t *testing.T) {
		inv := newTestInventory(t, 3)

		_, err := inv.ReserveStock(mustQty(t, 3), uuid.New(), "下单")
		require.NoError(t, err)
		assert.Equal(t, 0, inv.AvailableQuantity.Int())
		assert.Equal(t, 3, inv.ReservedQuantity.Int())
	})

	t.Run("零数量被拒绝", func(t *testing.T) {
		inv := newTestInventory(t, 10)

		_, err := inv.ReserveStock(ZeroQuantity(), uuid.New(), "下单")
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})
}

func TestCommitStock(t *testing.T) {
	t.Run("成功-reserved搬运到committed", func(t *testing.T) {
		inv := newTestInventory(t, 10)
		res, err := inv.ReserveStock(mustQty(t, 4), uuid.New(), "下单")
		require.NoError(t, err)
		inv.ClearEvents()

		txID := uuid.New()
		err = inv.CommitStock(res.ReservationID, res.Quantity, txID, "cust-1")
		require.NoError(t, err)

		assert.Equal(t, 6, inv.AvailableQuantity.Int())
		assert.Equal(t, 0, inv.ReservedQuantity.Int())
		assert.Equal(t, 4, inv.CommittedQuantity.Int())
		assert.Equal(t, 10, inv.TotalQuantity().Int(), "总量不变")

		events := inv.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventStockCommitted, events[0].EventType)
		assert.Equal(t, txID, events[0].TransactionID)
		assert.Equal(t, "cust-1", events[0].CustomerID)
	})

	t.Run("提交量超过reserved", func(t *testing.T) {
		inv := newTestInventory(t, 10)
		_, err := inv.ReserveStock(mustQty(t, 2), uuid.New(), "下单")
		require.NoError(t, err)

		err = inv.CommitStock(uuid.New(), mustQty(t, 5), uuid.New(), "")
		assert.ErrorIs(t, err, ErrInvalidReservationState)
	})
}

func TestReleaseReservation(t *testing.T) {
	t.Run("成功-reserved退回available", func(t *testing.T) {
		inv := newTestInventory(t, 10)
		res, err := inv.ReserveStock(mustQty(t, 4), uuid.New(), "下单")
		require.NoError(t, err)
		inv.ClearEvents()

		err = inv.ReleaseReservation(res.ReservationID, res.Quantity, "取消")
		require.NoError(t, err)

		assert.Equal(t, 10, inv.AvailableQuantity.Int())
		assert.Equal(t, 0, inv.ReservedQuantity.Int())

		events := inv.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventStockReservationReleased, events[0].EventType)
	})

	t.Run("释放量超过reserved", func(t *testing.T) {
		inv := newTestInventory(t, 10)

		err := inv.ReleaseReservation(uuid.New(), mustQty(t, 1), "取消")
		assert.ErrorIs(t, err, ErrInvalidReservationState)
	})
}

func TestReplenishAndWithdraw(t *testing.T) {
	t.Run("补货增加可用库存", func(t *testing.T) {
		inv := newTestInventory(t, 5)

		require.NoError(t, inv.ReplenishStock(mustQty(t, 20), "进货"))
		assert.Equal(t, 25, inv.AvailableQuantity.Int())
	})

	t.Run("补货数量必须为正", func(t *testing.T) {
		inv := newTestInventory(t, 5)
		assert.ErrorIs(t, inv.ReplenishStock(ZeroQuantity(), "进货"), ErrInvalidQuantity)
	})

	t.Run("撤回已补数量", func(t *testing.T) {
		inv := newTestInventory(t, 25)

		require.NoError(t, inv.WithdrawStock(mustQty(t, 20), "补偿"))
		assert.Equal(t, 5, inv.AvailableQuantity.Int())
	})

	t.Run("撤回量超过可用库存", func(t *testing.T) {
		inv := newTestInventory(t, 5)
		assert.ErrorIs(t, inv.WithdrawStock(mustQty(t, 6), "补偿"), ErrInsufficientStock)
	})
}

// 守恒校验：预留/提交/释放只在桶间搬运，总量仅随补货变化
func TestConservationAcrossLifecycle(t *testing.T) {
	inv := newTestInventory(t, 10)

	res1, err := inv.ReserveStock(mustQty(t, 4), uuid.New(), "订单A")
	require.NoError(t, err)
	res2, err := inv.ReserveStock(mustQty(t, 3), uuid.New(), "订单B")
	require.NoError(t, err)
	assert.Equal(t, 10, inv.TotalQuantity().Int())

	require.NoError(t, inv.CommitStock(res1.ReservationID, res1.Quantity, uuid.New(), ""))
	assert.Equal(t, 10, inv.TotalQuantity().Int())

	require.NoError(t, inv.ReleaseReservation(res2.ReservationID, res2.Quantity, "取消"))
	assert.Equal(t, 10, inv.TotalQuantity().Int())

	require.NoError(t, inv.ReplenishStock(mustQty(t, 5), "进货"))
	assert.Equal(t, 15, inv.TotalQuantity().Int())

	assert.Equal(t, 6+5, inv.AvailableQuantity.Int())
	assert.Equal(t, 0, inv.ReservedQuantity.Int())
	assert.Equal(t, 4, inv.CommittedQuantity.Int())
}

func TestEventsBuffering(t *testing.T) {
	inv := newTestInventory(t, 10)

	res, err := inv.ReserveStock(mustQty(t, 2), uuid.New(), "下单")
	require.NoError(t, err)
	require.NoError(t, inv.CommitStock(res.ReservationID, res.Quantity, uuid.New(), ""))

	events := inv.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventStockReserved, events[0].EventType)
	assert.Equal(t, EventStockCommitted, events[1].EventType)

	// 同一聚合的事件共享分区键
	assert.Equal(t, events[0].PartitionKey(), events[1].PartitionKey())

	inv.ClearEvents()
	assert.Empty(t, inv.Events())

	// Events返回的是副本，外部修改不影响缓冲
	_, err = inv.ReserveStock(mustQty(t, 1), uuid.New(), "下单")
	require.NoError(t, err)
	snapshot := inv.Events()
	snapshot[0].Quantity = 999
	assert.Equal(t, 1, inv.Events()[0].Quantity)
}

func TestIsLowStock(t *testing.T) {
	inv := newTestInventory(t, 5)

	assert.True(t, inv.IsLowStock(5))
	assert.True(t, inv.IsLowStock(10))
	assert.False(t, inv.IsLowStock(4))
}
