package application

import (
	stderrors "errors"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/errors"
)

// toAppError translates domain failures into caller-facing application
// errors. Quantities travel in the details so UI layers can render the
// shortfall without re-querying.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}

	var insufficient *domain.InsufficientStockError
	if stderrors.As(err, &insufficient) {
		return errors.ErrInsufficientStock(err.Error()).
			WithDetail("available", insufficient.Available.String()).
			WithDetail("requested", insufficient.Requested.String()).
			Wrap(err)
	}

	var belowReserved *domain.BelowReservedError
	if stderrors.As(err, &belowReserved) {
		return errors.ErrBelowReserved(err.Error()).
			WithDetail("reserved", belowReserved.Reserved.String()).
			WithDetail("requested", belowReserved.Requested.String()).
			Wrap(err)
	}

	var overRelease *domain.OverReleaseError
	if stderrors.As(err, &overRelease) {
		return errors.ErrOverRelease(err.Error()).
			WithDetail("reserved", overRelease.Reserved.String()).
			WithDetail("requested", overRelease.Requested.String()).
			Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrInvalidQuantity),
		stderrors.Is(err, domain.ErrNegativeQuantity),
		stderrors.Is(err, domain.ErrSameLocation),
		stderrors.Is(err, domain.ErrInvalidMovementType),
		stderrors.Is(err, domain.ErrMovementWithoutLocation):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrNoOpAdjustment):
		return errors.ErrNoOp(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrBalanceNotFound):
		return errors.ErrNotFound("stock balance").Wrap(err)
	case stderrors.Is(err, domain.ErrProductNotFound):
		return errors.ErrNotFound("product").Wrap(err)
	case stderrors.Is(err, domain.ErrLocationNotFound):
		return errors.ErrNotFound("location").Wrap(err)
	case domain.IsConflict(err):
		return errors.ErrWriteConflict("stock was modified concurrently, retry the operation").Wrap(err)
	default:
		return errors.ErrInternal("").Wrap(err)
	}
}
