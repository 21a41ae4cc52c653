package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the stock engine. Typed errors below report quantities
// and satisfy errors.Is against these sentinels.
var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativeQuantity  = errors.New("target quantity cannot be negative")
	ErrSameLocation      = errors.New("source and destination locations must differ")
	ErrInsufficientStock = errors.New("insufficient available stock")
	ErrBelowReserved     = errors.New("target quantity is below reserved quantity")
	ErrOverRelease       = errors.New("release quantity exceeds reserved quantity")
	ErrNoOpAdjustment    = errors.New("adjustment results in no change")

	ErrInvalidMovementType     = errors.New("unknown movement type")
	ErrMovementWithoutLocation = errors.New("movement must reference a location")

	ErrBalanceNotFound   = errors.New("stock balance not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrLocationNotFound  = errors.New("location not found")
	ErrWriteConflict     = errors.New("concurrent write conflict")
)

// InsufficientStockError reports how much was available when a request for
// more was rejected, so callers can render the shortfall without re-querying.
type InsufficientStockError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient available stock: available %s, requested %s",
		e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// BelowReservedError is returned when an adjustment would set on-hand under
// the quantity currently reserved.
type BelowReservedError struct {
	Reserved  decimal.Decimal
	Requested decimal.Decimal
}

func (e *BelowReservedError) Error() string {
	return fmt.Sprintf("target quantity %s is below reserved quantity %s",
		e.Requested.String(), e.Reserved.String())
}

func (e *BelowReservedError) Is(target error) bool {
	return target == ErrBelowReserved
}

// OverReleaseError is returned when a release asks for more than is reserved.
type OverReleaseError struct {
	Reserved  decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverReleaseError) Error() string {
	return fmt.Sprintf("release quantity %s exceeds reserved quantity %s",
		e.Requested.String(), e.Reserved.String())
}

func (e *OverReleaseError) Is(target error) bool {
	return target == ErrOverRelease
}

// IsConflict reports whether err is a transient write conflict that the
// engine may retry. Business-rule failures are never conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrWriteConflict)
}
