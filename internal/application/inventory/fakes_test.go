package inventory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domain "github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/internal/infrastructure/config"
	apperrors "github.com/xiebiao/retail-inventory/pkg/errors"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitMetrics()
	os.Exit(m.Run())
}

// 内存替身：应用层测试不依赖MySQL/Redis/RabbitMQ，
// 替身实现与真实基础设施相同的契约（乐观锁语义、缓存降级语义）

// testGuard 测试用弹性防护
// 重试次数给足、熔断阈值调高，并发测试中竞争冲突不会误开熔断
func testGuard() *Guard {
	return NewGuard("test", config.ResilienceConfig{
		RetryMaxAttempts:   50,
		RetryBackoff:       time.Millisecond,
		BreakerFailures:    1000,
		BreakerTimeout:     50 * time.Millisecond,
		BreakerMaxRequests: 1,
	})
}

// strictGuard 低阈值防护（熔断测试用）
func strictGuard() *Guard {
	return NewGuard("strict", config.ResilienceConfig{
		RetryMaxAttempts:   2,
		RetryBackoff:       time.Millisecond,
		BreakerFailures:    3,
		BreakerTimeout:     50 * time.Millisecond,
		BreakerMaxRequests: 1,
	})
}

// testResilienceConfig 构造防护配置（不设统计窗口，取零值默认）
func testResilienceConfig(retryAttempts int, breakerFailures uint32) config.ResilienceConfig {
	return config.ResilienceConfig{
		RetryMaxAttempts:   retryAttempts,
		RetryBackoff:       time.Millisecond,
		BreakerFailures:    breakerFailures,
		BreakerTimeout:     time.Minute,
		BreakerMaxRequests: 1,
	}
}

// ---- 库存仓储替身 ----

type memInventoryRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Inventory

	// findErr 注入查询故障（熔断测试）
	findErr error
}

func newMemInventoryRepo() *memInventoryRepo {
	return &memInventoryRepo{items: make(map[string]*domain.Inventory)}
}

func invKey(storeID uuid.UUID, sku domain.ProductSku) string {
	return fmt.Sprintf("%s:%s", storeID, sku)
}

func cloneInventory(inv *domain.Inventory) *domain.Inventory {
	return domain.ReconstituteInventory(
		inv.ID, inv.StoreID, inv.ProductSku,
		inv.AvailableQuantity, inv.ReservedQuantity, inv.CommittedQuantity,
		inv.LastUpdated, inv.Version,
	)
}

func (r *memInventoryRepo) FindByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku domain.ProductSku) (*domain.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	inv, ok := r.items[invKey(storeID, sku)]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	return cloneInventory(inv), nil
}

func (r *memInventoryRepo) FindByIDWithLock(ctx context.Context, id uuid.UUID) (*domain.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.items {
		if inv.ID == id {
			return cloneInventory(inv), nil
		}
	}
	return nil, domain.ErrInventoryNotFound
}

func (r *memInventoryRepo) FindByStore(ctx context.Context, storeID uuid.UUID) ([]*domain.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Inventory
	for _, inv := range r.items {
		if inv.StoreID == storeID {
			out = append(out, cloneInventory(inv))
		}
	}
	return out, nil
}

func (r *memInventoryRepo) FindLowStock(ctx context.Context, storeID uuid.UUID, threshold int) ([]*domain.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Inventory
	for _, inv := range r.items {
		if inv.StoreID == storeID && inv.AvailableQuantity.Int() <= threshold {
			out = append(out, cloneInventory(inv))
		}
	}
	return out, nil
}

func (r *memInventoryRepo) Create(ctx context.Context, inv *domain.Inventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invKey(inv.StoreID, inv.ProductSku)
	if _, exists := r.items[key]; exists {
		return domain.ErrInventoryExists
	}
	r.items[key] = cloneInventory(inv)
	return nil
}

// Save 复刻MySQL实现的乐观锁语义：版本不匹配时原子失败
func (r *memInventoryRepo) Save(ctx context.Context, inv *domain.Inventory, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invKey(inv.StoreID, inv.ProductSku)
	stored, ok := r.items[key]
	if !ok {
		return domain.ErrInventoryNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	next := cloneInventory(inv)
	next.Version = expectedVersion + 1
	r.items[key] = next
	inv.Version = next.Version
	return nil
}

func (r *memInventoryRepo) Delete(ctx context.Context, inv *domain.Inventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, invKey(inv.StoreID, inv.ProductSku))
	return nil
}

// snapshot 返回当前存储的聚合（测试断言用）
func (r *memInventoryRepo) snapshot(storeID uuid.UUID, sku domain.ProductSku) *domain.Inventory {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.items[invKey(storeID, sku)]
	if !ok {
		return nil
	}
	return cloneInventory(inv)
}

// ---- 预留仓储替身 ----

type memReservationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.StockReservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{items: make(map[uuid.UUID]*domain.StockReservation)}
}

func cloneReservation(res *domain.StockReservation) *domain.StockReservation {
	return domain.ReconstituteReservation(
		res.ReservationID, res.StoreID, res.ProductSku,
		res.Quantity, res.Reason, res.CreatedAt, res.ExpiresAt, res.Status,
	)
}

func (r *memReservationRepo) FindByID(ctx context.Context, reservationID uuid.UUID) (*domain.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return cloneReservation(res), nil
}

func (r *memReservationRepo) FindActiveByStoreAndSku(ctx context.Context, storeID uuid.UUID, sku domain.ProductSku) ([]*domain.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StockReservation
	for _, res := range r.items {
		if res.StoreID == storeID && res.ProductSku == sku && res.Status == domain.StatusActive {
			out = append(out, cloneReservation(res))
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StockReservation
	for _, res := range r.items {
		if res.Status == domain.StatusActive && res.ExpiresAt.Before(cutoff) {
			out = append(out, cloneReservation(res))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memReservationRepo) Save(ctx context.Context, reservation *domain.StockReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[reservation.ReservationID] = cloneReservation(reservation)
	return nil
}

func (r *memReservationRepo) Delete(ctx context.Context, reservationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, reservationID)
	return nil
}

// ---- 缓存替身 ----

type memCache struct {
	mu          sync.Mutex
	items       map[string]*domain.Inventory
	summaries   map[uuid.UUID][]*domain.Inventory
	hits        int
	misses      int
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{
		items:     make(map[string]*domain.Inventory),
		summaries: make(map[uuid.UUID][]*domain.Inventory),
	}
}

func (c *memCache) Get(ctx context.Context, storeID uuid.UUID, sku domain.ProductSku) (*domain.Inventory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv, ok := c.items[invKey(storeID, sku)]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return cloneInventory(inv), true
}

func (c *memCache) Set(ctx context.Context, inv *domain.Inventory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[invKey(inv.StoreID, inv.ProductSku)] = cloneInventory(inv)
}

func (c *memCache) Invalidate(ctx context.Context, storeID uuid.UUID, sku domain.ProductSku) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := invKey(storeID, sku)
	delete(c.items, key)
	delete(c.summaries, storeID)
	c.invalidated = append(c.invalidated, key)
}

func (c *memCache) GetStoreSummary(ctx context.Context, storeID uuid.UUID) ([]*domain.Inventory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.summaries[storeID]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	out := make([]*domain.Inventory, len(items))
	for i, inv := range items {
		out[i] = cloneInventory(inv)
	}
	return out, true
}

func (c *memCache) SetStoreSummary(ctx context.Context, storeID uuid.UUID, items []*domain.Inventory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]*domain.Inventory, len(items))
	for i, inv := range items {
		stored[i] = cloneInventory(inv)
	}
	c.summaries[storeID] = stored
}

// ---- 事件发布替身 ----

type memPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func newMemPublisher() *memPublisher {
	return &memPublisher{}
}

func (p *memPublisher) Publish(ctx context.Context, events []domain.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *memPublisher) published() []domain.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ---- 分布式锁替身 ----

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) Acquire(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return "", apperrors.ErrLockNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, nil
}

func (l *memLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- 事务替身 ----

// memTx 内存替身没有真事务，直接执行fn
// 乐观锁语义由memInventoryRepo.Save保证
type memTx struct{}

func (memTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ---- 组装辅助 ----

type fixture struct {
	repo      *memInventoryRepo
	resRepo   *memReservationRepo
	cache     *memCache
	publisher *memPublisher
	locker    *memLocker
	guard     *Guard

	storeID uuid.UUID
	sku     domain.ProductSku
}

// newFixture 建好一条库存行（available=initial）的测试环境
func newFixture(initial int) *fixture {
	f := &fixture{
		repo:      newMemInventoryRepo(),
		resRepo:   newMemReservationRepo(),
		cache:     newMemCache(),
		publisher: newMemPublisher(),
		locker:    newMemLocker(),
		guard:     testGuard(),
		storeID:   uuid.New(),
	}

	sku, err := domain.NewProductSku("SKU12345")
	if err != nil {
		panic(err)
	}
	f.sku = sku

	qty, err := domain.NewQuantity(initial)
	if err != nil {
		panic(err)
	}
	inv := domain.NewInventory(f.storeID, sku, qty)
	if err := f.repo.Create(context.Background(), inv); err != nil {
		panic(err)
	}

	return f
}

func (f *fixture) reserveUC() *ReserveStockUseCase {
	return NewReserveStockUseCase(f.repo, f.resRepo, memTx{}, f.cache, f.publisher, f.guard)
}

func (f *fixture) commitUC() *CommitStockUseCase {
	return NewCommitStockUseCase(f.repo, f.resRepo, memTx{}, f.cache, f.publisher, f.guard)
}

func (f *fixture) releaseUC() *ReleaseReservationUseCase {
	return NewReleaseReservationUseCase(f.repo, f.resRepo, memTx{}, f.cache, f.publisher, f.guard)
}

func (f *fixture) sweepUC() *ReleaseExpiredUseCase {
	return NewReleaseExpiredUseCase(f.repo, f.resRepo, memTx{}, f.cache, f.publisher, f.guard)
}

func (f *fixture) replenishUC() *ReplenishStockUseCase {
	return NewReplenishStockUseCase(f.repo, memTx{}, f.cache, f.locker, f.guard)
}
