package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/cloudevents"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/outbox"
)

// fakeBalanceRepo keeps balances in a map and enforces the same version
// check as the MongoDB repository, so conflict handling can be exercised
// without a database.
type fakeBalanceRepo struct {
	mu          sync.Mutex
	balances    map[domain.BalanceKey]*domain.StockBalance
	failUpdates int
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: make(map[domain.BalanceKey]*domain.StockBalance)}
}

func copyBalance(b *domain.StockBalance) *domain.StockBalance {
	c := *b
	return &c
}

func (r *fakeBalanceRepo) FindOrCreate(_ context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.balances[key]; ok {
		return copyBalance(b), nil
	}
	return domain.NewStockBalance(key), nil
}

func (r *fakeBalanceRepo) Find(_ context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.balances[key]; ok {
		return copyBalance(b), nil
	}
	return nil, nil
}

func (r *fakeBalanceRepo) Update(_ context.Context, balance *domain.StockBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates > 0 {
		r.failUpdates--
		return domain.ErrWriteConflict
	}
	if stored, ok := r.balances[balance.Key]; ok && stored.Version != balance.Version {
		return domain.ErrWriteConflict
	}
	balance.Version++
	r.balances[balance.Key] = copyBalance(balance)
	return nil
}

func (r *fakeBalanceRepo) Query(_ context.Context, tenantID string, filter domain.BalanceFilter, limit, offset int64) ([]*domain.StockBalance, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StockBalance
	for _, b := range r.balances {
		if b.Key.TenantID == tenantID && matchesFilter(b.Key, filter) {
			out = append(out, copyBalance(b))
		}
	}
	total := int64(len(out))
	_ = limit
	_ = offset
	return out, total, nil
}

func (r *fakeBalanceRepo) SumAvailable(_ context.Context, tenantID string, filter domain.BalanceFilter) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, b := range r.balances {
		if b.Key.TenantID == tenantID && matchesFilter(b.Key, filter) {
			total = total.Add(b.Available())
		}
	}
	return total, nil
}

// seed stores a balance directly, bypassing the mutation path.
func (r *fakeBalanceRepo) seed(b *domain.StockBalance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[b.Key] = copyBalance(b)
}

func matchesFilter(key domain.BalanceKey, filter domain.BalanceFilter) bool {
	if filter.ProductID != "" && key.ProductID != filter.ProductID {
		return false
	}
	if filter.LocationID != "" && key.LocationID != filter.LocationID {
		return false
	}
	if filter.BatchNumber != "" && key.BatchNumber != filter.BatchNumber {
		return false
	}
	return true
}

type fakeMovementRepo struct {
	mu      sync.Mutex
	entries []*domain.Movement
}

func (r *fakeMovementRepo) Append(_ context.Context, m *domain.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *m
	r.entries = append(r.entries, &c)
	return nil
}

func (r *fakeMovementRepo) HistoryByProduct(_ context.Context, tenantID, productID string, limit, offset int64) ([]*domain.Movement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Movement
	for _, m := range r.entries {
		if m.TenantID == tenantID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeMovementRepo) FindByBalanceKey(_ context.Context, key domain.BalanceKey) ([]*domain.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Movement
	for _, m := range r.entries {
		if m.TenantID != key.TenantID || m.ProductID != key.ProductID {
			continue
		}
		if m.FromLocationID != key.LocationID && m.ToLocationID != key.LocationID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeMovementRepo) all() []*domain.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Movement(nil), r.entries...)
}

type fakeSequenceGen struct {
	mu sync.Mutex
	n  int64
}

func (g *fakeSequenceGen) Next(_ context.Context, _, prefix string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, time.Now().UTC().Format("20060102"), g.n), nil
}

type fakeCatalogRepo struct {
	mu        sync.Mutex
	products  map[string]*domain.Product
	locations map[string]*domain.Location
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products:  make(map[string]*domain.Product),
		locations: make(map[string]*domain.Location),
	}
}

func (r *fakeCatalogRepo) Create(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

func (r *fakeCatalogRepo) FindByID(_ context.Context, tenantID, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok && p.TenantID == tenantID {
		return p, nil
	}
	return nil, nil
}

func (r *fakeCatalogRepo) List(_ context.Context, tenantID string, _, _ int64) ([]*domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

type fakeLocationRepo struct {
	*fakeCatalogRepo
}

func (r fakeLocationRepo) Create(_ context.Context, location *domain.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[location.ID] = location
	return nil
}

func (r fakeLocationRepo) FindByID(_ context.Context, tenantID, id string) (*domain.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locations[id]; ok && l.TenantID == tenantID {
		return l, nil
	}
	return nil, nil
}

func (r fakeLocationRepo) List(_ context.Context, tenantID string, _, _ int64) ([]*domain.Location, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Location
	for _, l := range r.locations {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*outbox.OutboxEvent
}

func (r *fakeOutboxRepo) Save(_ context.Context, event *outbox.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	for _, e := range events {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeOutboxRepo) FindUnpublished(_ context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outbox.OutboxEvent
	for _, e := range r.events {
		if !e.IsPublished() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("outbox event not found: %s", id)
}

func (r *fakeOutboxRepo) IncrementRetry(_ context.Context, id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.RetryCount++
			e.LastError = lastError
			return nil
		}
	}
	return fmt.Errorf("outbox event not found: %s", id)
}

func (r *fakeOutboxRepo) DeletePublished(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*outbox.OutboxEvent
	var deleted int64
	for _, e := range r.events {
		if e.IsPublished() && e.PublishedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

func (r *fakeOutboxRepo) GetByID(_ context.Context, id string) (*outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeOutboxRepo) FindByAggregateID(_ context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outbox.OutboxEvent
	for _, e := range r.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) eventsOfType(eventType string) []*outbox.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outbox.OutboxEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeTxManager runs the function directly. The fakes apply writes
// immediately, which is enough for the behaviour under test here.
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Output:      io.Discard,
	})
}

// fixture wires the application services against in-memory fakes with one
// product and two locations pre-registered.
type fixture struct {
	balances  *fakeBalanceRepo
	movements *fakeMovementRepo
	outbox    *fakeOutboxRepo
	catalog   *fakeCatalogRepo
	service   *StockApplicationService
	query     *StockQueryService
	tenantID  string
	product   *domain.Product
	locA      *domain.Location
	locB      *domain.Location
}

func newFixture(minStockLevel decimal.Decimal) *fixture {
	f := &fixture{
		balances:  newFakeBalanceRepo(),
		movements: &fakeMovementRepo{},
		outbox:    &fakeOutboxRepo{},
		catalog:   newFakeCatalogRepo(),
		tenantID:  "tenant-1",
	}

	f.product = domain.NewProduct(f.tenantID, "WIDGET-001", "Widget", minStockLevel)
	f.locA = domain.NewLocation(f.tenantID, "A-01-01", "WH1", "Aisle A")
	f.locB = domain.NewLocation(f.tenantID, "B-02-02", "WH1", "Aisle B")
	f.catalog.products[f.product.ID] = f.product
	f.catalog.locations[f.locA.ID] = f.locA
	f.catalog.locations[f.locB.ID] = f.locB

	logger := testLogger()
	f.service = NewStockApplicationService(
		f.balances,
		f.movements,
		&fakeSequenceGen{},
		f.catalog,
		fakeLocationRepo{f.catalog},
		f.outbox,
		fakeTxManager{},
		cloudevents.NewEventFactory(cloudevents.SourceStockLedger),
		nil,
		logger,
	)
	f.query = NewStockQueryService(f.balances, f.movements, logger)
	return f
}

func (f *fixture) receive(ctx context.Context, locationID string, qty string) (*BalanceDTO, error) {
	return f.service.Receive(ctx, ReceiveCommand{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: locationID,
		Quantity:   decimal.RequireFromString(qty),
	})
}

func (f *fixture) issue(ctx context.Context, locationID string, qty string) (*BalanceDTO, error) {
	return f.service.Issue(ctx, IssueCommand{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: locationID,
		Quantity:   decimal.RequireFromString(qty),
	})
}

// movementNumberLooksValid checks the generated document number shape
// without pinning the sequence value.
func movementNumberLooksValid(number string) bool {
	parts := strings.Split(number, "-")
	return len(parts) == 3 && parts[0] == domain.MovementNumberPrefix && len(parts[1]) == 8 && len(parts[2]) >= 4
}
