package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceDTO is the caller-facing view of a stock balance. Available is
// always derived from on-hand and reserved at mapping time.
type BalanceDTO struct {
	ProductID    string          `json:"productId"`
	LocationID   string          `json:"locationId"`
	BatchNumber  string          `json:"batchNumber,omitempty"`
	SerialNumber string          `json:"serialNumber,omitempty"`
	OnHand       decimal.Decimal `json:"quantityOnHand"`
	Reserved     decimal.Decimal `json:"quantityReserved"`
	Available    decimal.Decimal `json:"quantityAvailable"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
	LastMovement *time.Time      `json:"lastMovementAt,omitempty"`
	LastCountAt  *time.Time      `json:"lastCountAt,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// MovementDTO is the caller-facing view of a ledger entry.
type MovementDTO struct {
	ID              string          `json:"id"`
	MovementNumber  string          `json:"movementNumber"`
	MovementType    string          `json:"movementType"`
	ProductID       string          `json:"productId"`
	FromLocationID  string          `json:"fromLocationId,omitempty"`
	ToLocationID    string          `json:"toLocationId,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	BatchNumber     string          `json:"batchNumber,omitempty"`
	SerialNumber    string          `json:"serialNumber,omitempty"`
	ReferenceType   string          `json:"referenceType,omitempty"`
	ReferenceID     string          `json:"referenceId,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	ReasonCode      string          `json:"reasonCode,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	MovementDate    time.Time       `json:"movementDate"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// TransferDTO reports both sides of a completed transfer and the single
// ledger entry that recorded it.
type TransferDTO struct {
	From     *BalanceDTO  `json:"from"`
	To       *BalanceDTO  `json:"to"`
	Movement *MovementDTO `json:"movement"`
}

// AvailabilityDTO reports aggregate availability for the queried filters.
type AvailabilityDTO struct {
	ProductID   string          `json:"productId"`
	LocationID  string          `json:"locationId,omitempty"`
	BatchNumber string          `json:"batchNumber,omitempty"`
	Available   decimal.Decimal `json:"availableQuantity"`
}

// ReplayDTO compares the ledger-reconstructed on-hand against the stored
// balance for one key.
type ReplayDTO struct {
	ProductID    string          `json:"productId"`
	LocationID   string          `json:"locationId"`
	BatchNumber  string          `json:"batchNumber,omitempty"`
	SerialNumber string          `json:"serialNumber,omitempty"`
	LedgerOnHand decimal.Decimal `json:"ledgerOnHand"`
	StoredOnHand decimal.Decimal `json:"storedOnHand"`
	Drift        decimal.Decimal `json:"drift"`
	Consistent   bool            `json:"consistent"`
	Movements    int             `json:"movements"`
}

// ProductDTO is the caller-facing view of a catalog product.
type ProductDTO struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// LocationDTO is the caller-facing view of a storage location.
type LocationDTO struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	WarehouseID string    `json:"warehouseId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
