package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog record the engine consults for existence checks and
// the low-stock threshold. Catalog management itself is flat CRUD.
type Product struct {
	ID            string
	TenantID      string
	SKU           string
	Name          string
	MinStockLevel decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewProduct(tenantID, sku, name string, minStockLevel decimal.Decimal) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		SKU:           sku,
		Name:          name,
		MinStockLevel: minStockLevel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Location is a storage position inside a warehouse.
type Location struct {
	ID          string
	TenantID    string
	Code        string
	WarehouseID string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewLocation(tenantID, code, warehouseID, name string) *Location {
	now := time.Now().UTC()
	return &Location{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Code:        code,
		WarehouseID: warehouseID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
