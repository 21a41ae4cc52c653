package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceKey identifies one stock balance. Batch and serial are optional and
// empty when the stock is not batch- or serial-tracked.
type BalanceKey struct {
	TenantID     string
	ProductID    string
	LocationID   string
	BatchNumber  string
	SerialNumber string
}

// Less orders keys canonically: location first, ties broken by batch and
// serial. Transfers lock both balances in this order to avoid deadlocks when
// two transfers move stock in opposite directions between the same locations.
func (k BalanceKey) Less(other BalanceKey) bool {
	if c := strings.Compare(k.LocationID, other.LocationID); c != 0 {
		return c < 0
	}
	if c := strings.Compare(k.BatchNumber, other.BatchNumber); c != 0 {
		return c < 0
	}
	return strings.Compare(k.SerialNumber, other.SerialNumber) < 0
}

// StockBalance is the current quantity state for one key. On-hand and
// reserved are the stored facts; available is always derived from them.
// Version backs optimistic concurrency control in the repository.
type StockBalance struct {
	ID             string
	Key            BalanceKey
	OnHand         decimal.Decimal
	Reserved       decimal.Decimal
	ExpiryDate     *time.Time
	LastMovementAt *time.Time
	LastCountAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
}

// NewStockBalance creates an empty balance for a key. Balances are created
// lazily on first receive or transfer-in and are never hard-deleted; a row at
// zero keeps its movement history addressable.
func NewStockBalance(key BalanceKey) *StockBalance {
	now := time.Now().UTC()
	return &StockBalance{
		ID:        uuid.New().String(),
		Key:       key,
		OnHand:    decimal.Zero,
		Reserved:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Available returns on-hand minus reserved. Never persisted independently.
func (b *StockBalance) Available() decimal.Decimal {
	return b.OnHand.Sub(b.Reserved)
}

// Receive adds physical stock to the balance.
func (b *StockBalance) Receive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	b.OnHand = b.OnHand.Add(qty)
	b.touchMovement()
	return nil
}

// Issue removes physical stock. Fails when the request exceeds the available
// quantity so reserved stock is never issued out from under its holder.
func (b *StockBalance) Issue(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if b.Available().LessThan(qty) {
		return &InsufficientStockError{Available: b.Available(), Requested: qty}
	}
	b.OnHand = b.OnHand.Sub(qty)
	b.touchMovement()
	return nil
}

// Reserve soft-allocates available stock without moving it.
func (b *StockBalance) Reserve(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if b.Available().LessThan(qty) {
		return &InsufficientStockError{Available: b.Available(), Requested: qty}
	}
	b.Reserved = b.Reserved.Add(qty)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Release returns previously reserved stock to the available pool.
func (b *StockBalance) Release(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if qty.GreaterThan(b.Reserved) {
		return &OverReleaseError{Reserved: b.Reserved, Requested: qty}
	}
	b.Reserved = b.Reserved.Sub(qty)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// AdjustTo sets on-hand to an absolute quantity, as after a cycle count, and
// returns the signed delta that was applied. The adjustment may not drop
// on-hand under the reserved quantity, and a zero delta is rejected so no
// empty ledger entry is ever written.
func (b *StockBalance) AdjustTo(newQty decimal.Decimal) (decimal.Decimal, error) {
	if newQty.IsNegative() {
		return decimal.Zero, ErrNegativeQuantity
	}
	if newQty.LessThan(b.Reserved) {
		return decimal.Zero, &BelowReservedError{Reserved: b.Reserved, Requested: newQty}
	}
	delta := newQty.Sub(b.OnHand)
	if delta.IsZero() {
		return decimal.Zero, ErrNoOpAdjustment
	}
	b.OnHand = newQty
	now := time.Now().UTC()
	b.LastCountAt = &now
	b.touchMovement()
	return delta, nil
}

// BackfillExpiry records an expiry date the first time one is supplied.
// An already-known expiry is never overwritten.
func (b *StockBalance) BackfillExpiry(expiry *time.Time) {
	if b.ExpiryDate == nil && expiry != nil {
		b.ExpiryDate = expiry
		b.UpdatedAt = time.Now().UTC()
	}
}

func (b *StockBalance) touchMovement() {
	now := time.Now().UTC()
	b.LastMovementAt = &now
	b.UpdatedAt = now
}
