package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveCommand books physical stock into a location.
type ReceiveCommand struct {
	TenantID        string
	ProductID       string
	LocationID      string
	Quantity        decimal.Decimal
	BatchNumber     string
	SerialNumber    string
	ExpiryDate      *time.Time
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Notes           string
}

// IssueCommand removes physical stock from a location.
type IssueCommand struct {
	TenantID        string
	ProductID       string
	LocationID      string
	Quantity        decimal.Decimal
	BatchNumber     string
	SerialNumber    string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Notes           string
}

// TransferCommand relocates stock between two locations atomically.
type TransferCommand struct {
	TenantID       string
	ProductID      string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	BatchNumber    string
	ReferenceType  string
	ReferenceID    string
	Notes          string
}

// AdjustCommand sets on-hand to an absolute quantity after a count.
type AdjustCommand struct {
	TenantID     string
	ProductID    string
	LocationID   string
	NewQuantity  decimal.Decimal
	BatchNumber  string
	SerialNumber string
	ReasonCode   string
	Notes        string
}

// ReserveCommand soft-allocates available stock.
type ReserveCommand struct {
	TenantID    string
	ProductID   string
	LocationID  string
	Quantity    decimal.Decimal
	BatchNumber string
}

// ReleaseCommand returns reserved stock to the available pool.
type ReleaseCommand struct {
	TenantID    string
	ProductID   string
	LocationID  string
	Quantity    decimal.Decimal
	BatchNumber string
}

// AvailabilityQuery sums available quantity over matching balances.
type AvailabilityQuery struct {
	TenantID    string
	ProductID   string
	LocationID  string
	BatchNumber string
}

// ListBalancesQuery lists balances with optional filters.
type ListBalancesQuery struct {
	TenantID    string
	ProductID   string
	LocationID  string
	BatchNumber string
	Limit       int64
	Offset      int64
}

// MovementHistoryQuery pages through the ledger for one product.
type MovementHistoryQuery struct {
	TenantID  string
	ProductID string
	Limit     int64
	Offset    int64
}

// ReplayQuery reconstructs on-hand for one key from the ledger and compares
// it against the stored balance.
type ReplayQuery struct {
	TenantID     string
	ProductID    string
	LocationID   string
	BatchNumber  string
	SerialNumber string
}

// CreateProductCommand registers a catalog product.
type CreateProductCommand struct {
	TenantID      string
	SKU           string
	Name          string
	MinStockLevel decimal.Decimal
}

// CreateLocationCommand registers a storage location.
type CreateLocationCommand struct {
	TenantID    string
	Code        string
	WarehouseID string
	Name        string
}
