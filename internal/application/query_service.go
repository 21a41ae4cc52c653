package application

import (
	"context"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/logging"
)

// StockQueryService serves the read side: availability aggregation, balance
// listings, movement history and ledger replay. Reads go to the primary so
// allocation decisions never act on stale balances.
type StockQueryService struct {
	balances  domain.BalanceRepository
	movements domain.MovementRepository
	logger    *logging.Logger
}

// NewStockQueryService creates a new StockQueryService.
func NewStockQueryService(
	balances domain.BalanceRepository,
	movements domain.MovementRepository,
	logger *logging.Logger,
) *StockQueryService {
	return &StockQueryService{
		balances:  balances,
		movements: movements,
		logger:    logger,
	}
}

// AvailableQuantity sums on-hand minus reserved over all balances matching
// the filters.
func (s *StockQueryService) AvailableQuantity(ctx context.Context, query AvailabilityQuery) (*AvailabilityDTO, error) {
	if query.ProductID == "" {
		return nil, toAppError(domain.ErrProductNotFound)
	}

	filter := domain.BalanceFilter{
		ProductID:   query.ProductID,
		LocationID:  query.LocationID,
		BatchNumber: query.BatchNumber,
	}
	total, err := s.balances.SumAvailable(ctx, query.TenantID, filter)
	if err != nil {
		s.logger.Error("Failed to aggregate availability",
			"tenantId", query.TenantID, "productId", query.ProductID, "error", err)
		return nil, toAppError(err)
	}

	return &AvailabilityDTO{
		ProductID:   query.ProductID,
		LocationID:  query.LocationID,
		BatchNumber: query.BatchNumber,
		Available:   total,
	}, nil
}

// ListBalances pages through balances matching the filters.
func (s *StockQueryService) ListBalances(ctx context.Context, query ListBalancesQuery) ([]*BalanceDTO, int64, error) {
	filter := domain.BalanceFilter{
		ProductID:   query.ProductID,
		LocationID:  query.LocationID,
		BatchNumber: query.BatchNumber,
	}
	balances, total, err := s.balances.Query(ctx, query.TenantID, filter, query.Limit, query.Offset)
	if err != nil {
		s.logger.Error("Failed to list balances", "tenantId", query.TenantID, "error", err)
		return nil, 0, toAppError(err)
	}
	return ToBalanceDTOs(balances), total, nil
}

// MovementHistory pages through the ledger for one product, newest first.
func (s *StockQueryService) MovementHistory(ctx context.Context, query MovementHistoryQuery) ([]*MovementDTO, int64, error) {
	movements, total, err := s.movements.HistoryByProduct(ctx, query.TenantID, query.ProductID, query.Limit, query.Offset)
	if err != nil {
		s.logger.Error("Failed to load movement history",
			"tenantId", query.TenantID, "productId", query.ProductID, "error", err)
		return nil, 0, toAppError(err)
	}
	return ToMovementDTOs(movements), total, nil
}

// Replay reconstructs on-hand for one key by folding its ledger entries from
// zero and compares the result against the stored balance. Drift indicates a
// balance write that committed without its ledger entry, or vice versa.
func (s *StockQueryService) Replay(ctx context.Context, query ReplayQuery) (*ReplayDTO, error) {
	key := domain.BalanceKey{
		TenantID:     query.TenantID,
		ProductID:    query.ProductID,
		LocationID:   query.LocationID,
		BatchNumber:  query.BatchNumber,
		SerialNumber: query.SerialNumber,
	}

	balance, err := s.balances.Find(ctx, key)
	if err != nil {
		return nil, toAppError(err)
	}
	if balance == nil {
		return nil, toAppError(domain.ErrBalanceNotFound)
	}

	movements, err := s.movements.FindByBalanceKey(ctx, key)
	if err != nil {
		s.logger.Error("Failed to load movements for replay",
			"tenantId", query.TenantID, "productId", query.ProductID, "error", err)
		return nil, toAppError(err)
	}

	ledgerOnHand := domain.ReplayOnHand(key, movements)
	drift := balance.OnHand.Sub(ledgerOnHand)
	if !drift.IsZero() {
		s.logger.Warn("Ledger replay drift detected",
			"tenantId", query.TenantID, "productId", query.ProductID, "locationId", query.LocationID,
			"storedOnHand", balance.OnHand.String(), "ledgerOnHand", ledgerOnHand.String())
	}

	return &ReplayDTO{
		ProductID:    query.ProductID,
		LocationID:   query.LocationID,
		BatchNumber:  query.BatchNumber,
		SerialNumber: query.SerialNumber,
		LedgerOnHand: ledgerOnHand,
		StoredOnHand: balance.OnHand,
		Drift:        drift,
		Consistent:   drift.IsZero(),
		Movements:    len(movements),
	}, nil
}
