package mongodb

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/metrics"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
	tc "github.com/warehousekit/stock-ledger/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx        context.Context
	container  *tc.MongoDBContainer
	client     *mongodb.InstrumentedClient
	balances   *BalanceRepository
	movements  *MovementRepository
	sequences  *SequenceRepository
	products   *ProductRepository
	locations  *LocationRepository
	tx         *TransactionManager
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tc.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	config := mongodb.DefaultConfig()
	config.URI = container.URI
	config.Database = "stockledger_test"

	rawClient, err := mongodb.NewClient(s.ctx, config)
	s.Require().NoError(err)

	logger := logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Output:      io.Discard,
	})
	m := metrics.New(metrics.DefaultConfig("test"))
	s.client = mongodb.NewInstrumentedClient(rawClient, m, logger)

	s.balances = NewBalanceRepository(s.client)
	s.movements = NewMovementRepository(s.client)
	s.sequences = NewSequenceRepository(s.client)
	s.products = NewProductRepository(s.client)
	s.locations = NewLocationRepository(s.client)
	s.tx = NewTransactionManager(s.client)

	s.Require().NoError(s.balances.EnsureIndexes(s.ctx))
	s.Require().NoError(s.movements.EnsureIndexes(s.ctx))
	s.Require().NoError(s.sequences.EnsureIndexes(s.ctx))
	s.Require().NoError(s.products.EnsureIndexes(s.ctx))
	s.Require().NoError(s.locations.EnsureIndexes(s.ctx))
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	db := s.client.Database()
	for _, name := range []string{"stock_balances", "stock_movements", "sequence_counters", "products", "locations"} {
		_ = db.Collection(name).Drop(s.ctx)
	}
	s.Require().NoError(s.balances.EnsureIndexes(s.ctx))
	s.Require().NoError(s.movements.EnsureIndexes(s.ctx))
	s.Require().NoError(s.sequences.EnsureIndexes(s.ctx))
	s.Require().NoError(s.products.EnsureIndexes(s.ctx))
	s.Require().NoError(s.locations.EnsureIndexes(s.ctx))
}

func testKey(batch string) domain.BalanceKey {
	return domain.BalanceKey{
		TenantID:    "tenant-001",
		ProductID:   "prod-001",
		LocationID:  "A-01-01",
		BatchNumber: batch,
	}
}

func (s *RepositoryIntegrationTestSuite) TestBalanceRepository_FindOrCreateRoundTrip() {
	key := testKey("")

	created, err := s.balances.FindOrCreate(s.ctx, key)
	s.Require().NoError(err)
	s.True(created.OnHand.IsZero())
	s.EqualValues(1, created.Version)

	// Second call returns the stored row, not a fresh one.
	found, err := s.balances.FindOrCreate(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
}

func (s *RepositoryIntegrationTestSuite) TestBalanceRepository_UpdatePreservesDecimals() {
	key := testKey("BATCH-A")

	balance, err := s.balances.FindOrCreate(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NoError(balance.Receive(decimal.RequireFromString("10.75")))
	s.Require().NoError(balance.Reserve(decimal.RequireFromString("0.25")))
	s.Require().NoError(s.balances.Update(s.ctx, balance))

	reloaded, err := s.balances.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(reloaded)
	s.True(reloaded.OnHand.Equal(decimal.RequireFromString("10.75")), "got %s", reloaded.OnHand)
	s.True(reloaded.Reserved.Equal(decimal.RequireFromString("0.25")))
	s.True(reloaded.Available().Equal(decimal.RequireFromString("10.5")))
	s.EqualValues(2, reloaded.Version)
}

func (s *RepositoryIntegrationTestSuite) TestBalanceRepository_StaleVersionConflicts() {
	key := testKey("")

	balance, err := s.balances.FindOrCreate(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NoError(balance.Receive(decimal.NewFromInt(5)))
	s.Require().NoError(s.balances.Update(s.ctx, balance))

	// Two readers load the same version; the slower writer must lose.
	first, err := s.balances.Find(s.ctx, key)
	s.Require().NoError(err)
	second, err := s.balances.Find(s.ctx, key)
	s.Require().NoError(err)

	s.Require().NoError(first.Receive(decimal.NewFromInt(1)))
	s.Require().NoError(s.balances.Update(s.ctx, first))

	s.Require().NoError(second.Receive(decimal.NewFromInt(1)))
	err = s.balances.Update(s.ctx, second)
	s.Require().Error(err)
	s.True(domain.IsConflict(err), "expected a write conflict, got %v", err)
}

func (s *RepositoryIntegrationTestSuite) TestBalanceRepository_SumAvailable() {
	for i, batch := range []string{"B1", "B2", "B3"} {
		balance, err := s.balances.FindOrCreate(s.ctx, testKey(batch))
		s.Require().NoError(err)
		s.Require().NoError(balance.Receive(decimal.NewFromInt(int64(10 * (i + 1)))))
		s.Require().NoError(s.balances.Update(s.ctx, balance))
	}
	// Reserve 5 from the middle batch: 10 + 15 + 30 available.
	balance, err := s.balances.Find(s.ctx, testKey("B2"))
	s.Require().NoError(err)
	s.Require().NoError(balance.Reserve(decimal.NewFromInt(5)))
	s.Require().NoError(s.balances.Update(s.ctx, balance))

	total, err := s.balances.SumAvailable(s.ctx, "tenant-001", domain.BalanceFilter{ProductID: "prod-001"})
	s.Require().NoError(err)
	s.True(total.Equal(decimal.NewFromInt(55)), "got %s", total)

	scoped, err := s.balances.SumAvailable(s.ctx, "tenant-001", domain.BalanceFilter{
		ProductID:   "prod-001",
		BatchNumber: "B2",
	})
	s.Require().NoError(err)
	s.True(scoped.Equal(decimal.NewFromInt(15)))

	empty, err := s.balances.SumAvailable(s.ctx, "tenant-001", domain.BalanceFilter{ProductID: "other"})
	s.Require().NoError(err)
	s.True(empty.IsZero())
}

func (s *RepositoryIntegrationTestSuite) TestMovementRepository_AppendAndHistory() {
	for i := 0; i < 3; i++ {
		m := domain.NewMovement("tenant-001", fmt.Sprintf("SM-20260830-%04d", i+1), domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(int64(i+1)))
		m.ToLocationID = "A-01-01"
		s.Require().NoError(s.movements.Append(s.ctx, m))
	}

	history, total, err := s.movements.HistoryByProduct(s.ctx, "tenant-001", "prod-001", 2, 0)
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(history, 2)

	// Duplicate movement numbers are rejected by the unique index.
	dup := domain.NewMovement("tenant-001", "SM-20260830-0001", domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(1))
	dup.ToLocationID = "A-01-01"
	s.Error(s.movements.Append(s.ctx, dup))
}

func (s *RepositoryIntegrationTestSuite) TestMovementRepository_FindByBalanceKey() {
	receipt := domain.NewMovement("tenant-001", "SM-20260830-0101", domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(10))
	receipt.ToLocationID = "A-01-01"
	s.Require().NoError(s.movements.Append(s.ctx, receipt))

	transfer := domain.NewMovement("tenant-001", "SM-20260830-0102", domain.MovementTypeTransfer, "prod-001", decimal.NewFromInt(4))
	transfer.FromLocationID = "A-01-01"
	transfer.ToLocationID = "B-02-02"
	s.Require().NoError(s.movements.Append(s.ctx, transfer))

	batched := domain.NewMovement("tenant-001", "SM-20260830-0103", domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(7))
	batched.ToLocationID = "A-01-01"
	batched.BatchNumber = "BATCH-X"
	s.Require().NoError(s.movements.Append(s.ctx, batched))

	// Unbatched key matches only the entries without a batch number, even
	// though those documents omit the field entirely.
	entries, err := s.movements.FindByBalanceKey(s.ctx, testKey(""))
	s.Require().NoError(err)
	s.Len(entries, 2)
	s.True(domain.ReplayOnHand(testKey(""), entries).Equal(decimal.NewFromInt(6)))

	batchedEntries, err := s.movements.FindByBalanceKey(s.ctx, testKey("BATCH-X"))
	s.Require().NoError(err)
	s.Len(batchedEntries, 1)

	destEntries, err := s.movements.FindByBalanceKey(s.ctx, domain.BalanceKey{
		TenantID:   "tenant-001",
		ProductID:  "prod-001",
		LocationID: "B-02-02",
	})
	s.Require().NoError(err)
	s.Len(destEntries, 1)
	s.True(domain.ReplayOnHand(domain.BalanceKey{
		TenantID:   "tenant-001",
		ProductID:  "prod-001",
		LocationID: "B-02-02",
	}, destEntries).Equal(decimal.NewFromInt(4)))
}

func (s *RepositoryIntegrationTestSuite) TestSequenceRepository_Next() {
	first, err := s.sequences.Next(s.ctx, "tenant-001", "SM")
	s.Require().NoError(err)
	second, err := s.sequences.Next(s.ctx, "tenant-001", "SM")
	s.Require().NoError(err)

	s.Regexp(`^SM-\d{8}-\d{4}$`, first)
	s.Regexp(`^SM-\d{8}-0002$`, second)
	s.NotEqual(first, second)

	// Counters are independent per tenant and prefix.
	otherTenant, err := s.sequences.Next(s.ctx, "tenant-002", "SM")
	s.Require().NoError(err)
	s.Regexp(`-0001$`, otherTenant)

	otherPrefix, err := s.sequences.Next(s.ctx, "tenant-001", "ADJ")
	s.Require().NoError(err)
	s.Regexp(`^ADJ-\d{8}-0001$`, otherPrefix)
}

func (s *RepositoryIntegrationTestSuite) TestCatalogRepositories() {
	product := domain.NewProduct("tenant-001", "WIDGET-001", "Widget", decimal.NewFromInt(5))
	s.Require().NoError(s.products.Create(s.ctx, product))

	// Duplicate SKU within the tenant is rejected.
	dup := domain.NewProduct("tenant-001", "WIDGET-001", "Widget again", decimal.Zero)
	s.Error(s.products.Create(s.ctx, dup))

	found, err := s.products.FindByID(s.ctx, "tenant-001", product.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.True(found.MinStockLevel.Equal(decimal.NewFromInt(5)))

	// Another tenant cannot see the product.
	foreign, err := s.products.FindByID(s.ctx, "tenant-002", product.ID)
	s.Require().NoError(err)
	s.Nil(foreign)

	location := domain.NewLocation("tenant-001", "A-01-01", "WH1", "Aisle A")
	s.Require().NoError(s.locations.Create(s.ctx, location))

	foundLoc, err := s.locations.FindByID(s.ctx, "tenant-001", location.ID)
	s.Require().NoError(err)
	s.Require().NotNil(foundLoc)
	s.Equal("A-01-01", foundLoc.Code)
}

func (s *RepositoryIntegrationTestSuite) TestTransactionManager_RollsBackOnError() {
	key := testKey("")

	err := s.tx.WithTransaction(s.ctx, func(txCtx context.Context) error {
		balance, err := s.balances.FindOrCreate(txCtx, key)
		if err != nil {
			return err
		}
		if err := balance.Receive(decimal.NewFromInt(10)); err != nil {
			return err
		}
		if err := s.balances.Update(txCtx, balance); err != nil {
			return err
		}

		m := domain.NewMovement("tenant-001", "SM-20260830-9001", domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(10))
		m.ToLocationID = key.LocationID
		if err := s.movements.Append(txCtx, m); err != nil {
			return err
		}

		return fmt.Errorf("boom")
	})
	s.Require().Error(err)

	// Neither the balance nor the ledger entry survived the rollback.
	balance, err := s.balances.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Nil(balance)

	entries, err := s.movements.FindByBalanceKey(s.ctx, key)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *RepositoryIntegrationTestSuite) TestTransactionManager_CommitsBothWrites() {
	key := testKey("")

	err := s.tx.WithTransaction(s.ctx, func(txCtx context.Context) error {
		balance, err := s.balances.FindOrCreate(txCtx, key)
		if err != nil {
			return err
		}
		if err := balance.Receive(decimal.NewFromInt(10)); err != nil {
			return err
		}
		if err := s.balances.Update(txCtx, balance); err != nil {
			return err
		}

		m := domain.NewMovement("tenant-001", "SM-20260830-9002", domain.MovementTypeReceipt, "prod-001", decimal.NewFromInt(10))
		m.ToLocationID = key.LocationID
		return s.movements.Append(txCtx, m)
	})
	s.Require().NoError(err)

	balance, err := s.balances.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(balance)
	s.True(balance.OnHand.Equal(decimal.NewFromInt(10)))

	entries, err := s.movements.FindByBalanceKey(s.ctx, key)
	s.Require().NoError(err)
	s.Len(entries, 1)
}
