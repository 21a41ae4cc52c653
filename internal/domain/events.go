package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types emitted by the engine via the transactional outbox.
const (
	EventTypeStockMovementRecorded = "stock.movement.recorded"
	EventTypeStockLevelLow         = "stock.level.low"
)

// Event is implemented by every outbound domain event.
type Event interface {
	EventType() string
	AggregateID() string
	Tenant() string
}

// StockMovementRecorded is appended for every committed ledger entry.
type StockMovementRecorded struct {
	TenantID       string          `json:"tenantId"`
	MovementID     string          `json:"movementId"`
	MovementNumber string          `json:"movementNumber"`
	MovementType   MovementType    `json:"movementType"`
	ProductID      string          `json:"productId"`
	FromLocationID string          `json:"fromLocationId,omitempty"`
	ToLocationID   string          `json:"toLocationId,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	BatchNumber    string          `json:"batchNumber,omitempty"`
	SerialNumber   string          `json:"serialNumber,omitempty"`
	MovementDate   time.Time       `json:"movementDate"`
}

func (e StockMovementRecorded) EventType() string { return EventTypeStockMovementRecorded }

func (e StockMovementRecorded) AggregateID() string { return e.MovementID }

func (e StockMovementRecorded) Tenant() string { return e.TenantID }

// StockLevelLow signals that an issue dropped on-hand under the product's
// minimum stock level. Published through the outbox so notifier downtime
// never rolls back the stock change.
type StockLevelLow struct {
	TenantID     string          `json:"tenantId"`
	ProductID    string          `json:"productId"`
	SKU          string          `json:"sku"`
	LocationID   string          `json:"locationId"`
	LocationCode string          `json:"locationCode"`
	OnHand       decimal.Decimal `json:"onHand"`
	Threshold    decimal.Decimal `json:"threshold"`
}

func (e StockLevelLow) EventType() string { return EventTypeStockLevelLow }

func (e StockLevelLow) AggregateID() string { return e.ProductID }

func (e StockLevelLow) Tenant() string { return e.TenantID }
