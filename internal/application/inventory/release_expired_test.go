package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
)

func mustParseUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

// expireReservation 测试辅助：把预留的expiresAt改写到过去
func expireReservation(t *testing.T, f *fixture, reservationID string) {
	t.Helper()
	res := mustFindReservation(t, f, reservationID)
	expired := domain.ReconstituteReservation(
		res.ReservationID, res.StoreID, res.ProductSku,
		res.Quantity, res.Reason,
		res.CreatedAt.Add(-10*time.Minute), time.Now().Add(-time.Minute),
		domain.StatusActive,
	)
	require.NoError(t, f.resRepo.Save(context.Background(), expired))
}

func mustFindReservation(t *testing.T, f *fixture, id string) *domain.StockReservation {
	t.Helper()
	resp, err := f.resRepo.FindByID(context.Background(), mustParseUUID(t, id))
	require.NoError(t, err)
	return resp
}

// TestReleaseExpired_Sweep 清扫回收过期预留，放过未过期的
func TestReleaseExpired_Sweep(t *testing.T) {
	f := newFixture(10)
	uc := f.reserveUC()

	// 两笔预留：一笔过期，一笔仍然有效
	respA, err := uc.Execute(context.Background(), ReserveStockRequest{
		StoreID: f.storeID, Sku: "SKU12345", Quantity: 3,
	})
	require.NoError(t, err)
	respB, err := uc.Execute(context.Background(), ReserveStockRequest{
		StoreID: f.storeID, Sku: "SKU12345", Quantity: 2,
	})
	require.NoError(t, err)

	expireReservation(t, f, respA.ReservationID)

	result, err := f.sweepUC().Execute(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 0, result.Failed)

	// 过期的3件归还，有效的2件仍被占用
	inv := f.repo.snapshot(f.storeID, f.sku)
	assert.Equal(t, 8, inv.AvailableQuantity.Int())
	assert.Equal(t, 2, inv.ReservedQuantity.Int())
	assert.Equal(t, 10, inv.TotalQuantity().Int())

	// 状态固化
	resA := mustFindReservation(t, f, respA.ReservationID)
	assert.Equal(t, domain.StatusExpired, resA.Status)
	resB := mustFindReservation(t, f, respB.ReservationID)
	assert.Equal(t, domain.StatusActive, resB.Status)

	// 过期回收发布释放事件
	events := f.publisher.published()
	var releasedEvents int
	for _, e := range events {
		if e.EventType == domain.EventStockReservationReleased {
			releasedEvents++
		}
	}
	assert.Equal(t, 1, releasedEvents)
}

// TestReleaseExpired_Idempotent 重复清扫无副作用
func TestReleaseExpired_Idempotent(t *testing.T) {
	f := newFixture(10)
	resp, err := f.reserveUC().Execute(context.Background(), ReserveStockRequest{
		StoreID: f.storeID, Sku: "SKU12345", Quantity: 3,
	})
	require.NoError(t, err)
	expireReservation(t, f, resp.ReservationID)

	_, err = f.sweepUC().Execute(context.Background(), 100)
	require.NoError(t, err)

	result, err := f.sweepUC().Execute(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned, "已固化EXPIRED的预留不再被扫到")

	inv := f.repo.snapshot(f.storeID, f.sku)
	assert.Equal(t, 10, inv.AvailableQuantity.Int())
	assert.Equal(t, 10, inv.TotalQuantity().Int())
}

// TestReleaseExpired_EmptyBatch 无过期预留时安静返回
func TestReleaseExpired_EmptyBatch(t *testing.T) {
	f := newFixture(10)

	result, err := f.sweepUC().Execute(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Equal(t, 0, result.Released)
}
