package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementTypeReceipt    MovementType = "RECEIPT"
	MovementTypeIssue      MovementType = "ISSUE"
	MovementTypeTransfer   MovementType = "TRANSFER"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// MovementNumberPrefix is the document prefix for stock movement numbers.
const MovementNumberPrefix = "SM"

// Movement is one immutable ledger entry. Quantity is always a positive
// magnitude; direction is encoded by which location fields are populated.
// A transfer carries both locations in a single entry.
type Movement struct {
	ID              string
	TenantID        string
	MovementNumber  string
	MovementType    MovementType
	ProductID       string
	FromLocationID  string
	ToLocationID    string
	Quantity        decimal.Decimal
	BatchNumber     string
	SerialNumber    string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	ReasonCode      string
	Notes           string
	MovementDate    time.Time
	CreatedAt       time.Time
}

// NewMovement builds a ledger entry with generated id and timestamps. The
// movement number comes from the sequence generator inside the same
// transaction that mutates the balance.
func NewMovement(tenantID, number string, movementType MovementType, productID string, qty decimal.Decimal) *Movement {
	now := time.Now().UTC()
	return &Movement{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		MovementNumber: number,
		MovementType:   movementType,
		ProductID:      productID,
		Quantity:       qty,
		MovementDate:   now,
		CreatedAt:      now,
	}
}

// Validate checks the structural rules that hold for every entry regardless
// of type: positive magnitude, a known type, and at least one location.
func (m *Movement) Validate() error {
	if !m.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	switch m.MovementType {
	case MovementTypeReceipt, MovementTypeIssue, MovementTypeTransfer, MovementTypeAdjustment:
	default:
		return ErrInvalidMovementType
	}
	if m.FromLocationID == "" && m.ToLocationID == "" {
		return ErrMovementWithoutLocation
	}
	if m.MovementType == MovementTypeTransfer && (m.FromLocationID == "" || m.ToLocationID == "") {
		return ErrMovementWithoutLocation
	}
	return nil
}

// DeltaAt returns the signed on-hand effect of this movement at a location:
// positive when the location is the destination, negative when it is the
// source, zero when the movement does not touch it.
func (m *Movement) DeltaAt(locationID string) decimal.Decimal {
	switch locationID {
	case m.ToLocationID:
		return m.Quantity
	case m.FromLocationID:
		return m.Quantity.Neg()
	default:
		return decimal.Zero
	}
}

// ReplayOnHand reconstructs the on-hand quantity of a balance key by folding
// its movements from zero. The ledger is the authoritative history; a
// divergence between replay and the stored balance indicates a missed or
// orphaned entry.
func ReplayOnHand(key BalanceKey, movements []*Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		if m.ProductID != key.ProductID {
			continue
		}
		if m.BatchNumber != key.BatchNumber || m.SerialNumber != key.SerialNumber {
			continue
		}
		total = total.Add(m.DeltaAt(key.LocationID))
	}
	return total
}
