package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warehousekit/stock-ledger/internal/domain"
)

func testBalance(onHand, reserved decimal.Decimal) *domain.StockBalance {
	b := domain.NewStockBalance(domain.BalanceKey{
		TenantID:   "tenant-001",
		ProductID:  "prod-001",
		LocationID: "A-01-01",
	})
	b.OnHand = onHand
	b.Reserved = reserved
	return b
}

func TestBalanceDocument_RoundTripsQuantities(t *testing.T) {
	balance := testBalance(decimal.RequireFromString("10.75"), decimal.RequireFromString("0.25"))

	doc, err := newBalanceDocument(balance)
	require.NoError(t, err)

	back, err := doc.toDomain()
	require.NoError(t, err)
	assert.True(t, back.OnHand.Equal(balance.OnHand), "got %s", back.OnHand)
	assert.True(t, back.Reserved.Equal(balance.Reserved), "got %s", back.Reserved)
}

func TestBalanceDocument_RejectsQuantityOutsideDecimal128Range(t *testing.T) {
	// 1E+9999 is a valid decimal.Decimal but exceeds the Decimal128 exponent
	// range. Mapping it must fail instead of persisting zero.
	balance := testBalance(decimal.New(1, 9999), decimal.Zero)

	_, err := newBalanceDocument(balance)
	require.Error(t, err)

	balance = testBalance(decimal.Zero, decimal.New(1, 9999))
	_, err = newBalanceDocument(balance)
	require.Error(t, err)
}

func TestMovementDocument_RejectsQuantityOutsideDecimal128Range(t *testing.T) {
	movement := domain.NewMovement("tenant-001", "SM-20260830-0001", domain.MovementTypeReceipt, "prod-001", decimal.New(1, 9999))
	movement.ToLocationID = "A-01-01"

	_, err := newMovementDocument(movement)
	require.Error(t, err)
}

func TestProductDocument_RejectsMinStockOutsideDecimal128Range(t *testing.T) {
	product := domain.NewProduct("tenant-001", "WIDGET-001", "Widget", decimal.New(1, 9999))

	_, err := newProductDocument(product)
	require.Error(t, err)
}
