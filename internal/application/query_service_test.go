package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/errors"
)

func TestAvailableQuantity_SumsAcrossLocations(t *testing.T) {
	f := newFixture(decimal.Zero)
	ctx := context.Background()

	_, err := f.receive(ctx, f.locA.ID, "10")
	require.NoError(t, err)
	_, err = f.receive(ctx, f.locB.ID, "5")
	require.NoError(t, err)
	_, err = f.service.Reserve(ctx, ReserveCommand{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: f.locA.ID,
		Quantity:   decimal.NewFromInt(4),
	})
	require.NoError(t, err)

	availability, err := f.query.AvailableQuantity(ctx, AvailabilityQuery{
		TenantID:  f.tenantID,
		ProductID: f.product.ID,
	})
	require.NoError(t, err)
	assert.True(t, availability.Available.Equal(decimal.NewFromInt(11)), "got %s", availability.Available)

	scoped, err := f.query.AvailableQuantity(ctx, AvailabilityQuery{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: f.locB.ID,
	})
	require.NoError(t, err)
	assert.True(t, scoped.Available.Equal(decimal.NewFromInt(5)))
}

func TestAvailableQuantity_RequiresProduct(t *testing.T) {
	f := newFixture(decimal.Zero)

	_, err := f.query.AvailableQuantity(context.Background(), AvailabilityQuery{TenantID: f.tenantID})
	requireAppErrorCode(t, err, errors.CodeNotFound)
}

func TestAvailableQuantity_ZeroWhenNoBalances(t *testing.T) {
	f := newFixture(decimal.Zero)

	availability, err := f.query.AvailableQuantity(context.Background(), AvailabilityQuery{
		TenantID:  f.tenantID,
		ProductID: f.product.ID,
	})
	require.NoError(t, err)
	assert.True(t, availability.Available.IsZero())
}

func TestMovementHistory_ReturnsEntriesForProduct(t *testing.T) {
	f := newFixture(decimal.Zero)
	ctx := context.Background()

	_, err := f.receive(ctx, f.locA.ID, "10")
	require.NoError(t, err)
	_, err = f.issue(ctx, f.locA.ID, "3")
	require.NoError(t, err)

	history, total, err := f.query.MovementHistory(ctx, MovementHistoryQuery{
		TenantID:  f.tenantID,
		ProductID: f.product.ID,
		Limit:     20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, history, 2)
}

func TestReplay_ReproducesOnHand(t *testing.T) {
	f := newFixture(decimal.Zero)
	ctx := context.Background()

	_, err := f.receive(ctx, f.locA.ID, "10")
	require.NoError(t, err)
	_, err = f.issue(ctx, f.locA.ID, "3")
	require.NoError(t, err)
	_, err = f.service.Transfer(ctx, TransferCommand{
		TenantID:       f.tenantID,
		ProductID:      f.product.ID,
		FromLocationID: f.locA.ID,
		ToLocationID:   f.locB.ID,
		Quantity:       decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	_, err = f.service.Adjust(ctx, AdjustCommand{
		TenantID:    f.tenantID,
		ProductID:   f.product.ID,
		LocationID:  f.locA.ID,
		NewQuantity: decimal.NewFromInt(4),
		ReasonCode:  "CYCLE_COUNT",
	})
	require.NoError(t, err)

	for _, locationID := range []string{f.locA.ID, f.locB.ID} {
		report, err := f.query.Replay(ctx, ReplayQuery{
			TenantID:   f.tenantID,
			ProductID:  f.product.ID,
			LocationID: locationID,
		})
		require.NoError(t, err)
		assert.True(t, report.Consistent, "location %s drifted by %s", locationID, report.Drift)
		assert.True(t, report.Drift.IsZero())
		assert.True(t, report.LedgerOnHand.Equal(report.StoredOnHand))
	}
}

func TestReplay_DetectsDrift(t *testing.T) {
	f := newFixture(decimal.Zero)
	ctx := context.Background()

	_, err := f.receive(ctx, f.locA.ID, "10")
	require.NoError(t, err)

	// Corrupt the stored balance behind the ledger's back.
	key := domain.BalanceKey{TenantID: f.tenantID, ProductID: f.product.ID, LocationID: f.locA.ID}
	corrupted, err := f.balances.Find(ctx, key)
	require.NoError(t, err)
	corrupted.OnHand = decimal.NewFromInt(13)
	f.balances.seed(corrupted)

	report, err := f.query.Replay(ctx, ReplayQuery{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: f.locA.ID,
	})
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.True(t, report.Drift.Equal(decimal.NewFromInt(3)))
	assert.True(t, report.LedgerOnHand.Equal(decimal.NewFromInt(10)))
	assert.True(t, report.StoredOnHand.Equal(decimal.NewFromInt(13)))
}

func TestReplay_MissingBalance(t *testing.T) {
	f := newFixture(decimal.Zero)

	_, err := f.query.Replay(context.Background(), ReplayQuery{
		TenantID:   f.tenantID,
		ProductID:  f.product.ID,
		LocationID: f.locA.ID,
	})
	requireAppErrorCode(t, err, errors.CodeNotFound)
}

func TestListBalances_FiltersByLocation(t *testing.T) {
	f := newFixture(decimal.Zero)
	ctx := context.Background()

	_, err := f.receive(ctx, f.locA.ID, "10")
	require.NoError(t, err)
	_, err = f.receive(ctx, f.locB.ID, "5")
	require.NoError(t, err)

	balances, total, err := f.query.ListBalances(ctx, ListBalancesQuery{
		TenantID:   f.tenantID,
		LocationID: f.locA.ID,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, balances, 1)
	assert.Equal(t, f.locA.ID, balances[0].LocationID)
}
