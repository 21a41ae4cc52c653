package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/cloudevents"
	"github.com/warehousekit/stock-ledger/pkg/kafka"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/metrics"
	"github.com/warehousekit/stock-ledger/pkg/outbox"
	"github.com/warehousekit/stock-ledger/pkg/resilience"
)

const (
	maxMutationAttempts   = 3
	mutationRetryInitial  = 25 * time.Millisecond
	mutationRetryMax      = 250 * time.Millisecond
	aggregateTypeMovement = "StockMovement"
	aggregateTypeProduct  = "Product"
)

// StockApplicationService implements the stock mutation engine: receive,
// issue, transfer and adjust against balances, plus the reservation
// protocol. Every mutation runs in one transaction covering the balance
// write, its ledger entry and any outbox events; transient write conflicts
// are retried with backoff, business failures are returned immediately.
type StockApplicationService struct {
	balances  domain.BalanceRepository
	movements domain.MovementRepository
	sequences domain.SequenceGenerator
	products  domain.ProductRepository
	locations domain.LocationRepository
	outbox    outbox.Repository
	tx        domain.TransactionManager
	events    *cloudevents.EventFactory
	metrics   *metrics.Metrics
	logger    *logging.Logger
	retry     *resilience.RetryConfig
}

// NewStockApplicationService creates a new StockApplicationService.
func NewStockApplicationService(
	balances domain.BalanceRepository,
	movements domain.MovementRepository,
	sequences domain.SequenceGenerator,
	products domain.ProductRepository,
	locations domain.LocationRepository,
	outboxRepo outbox.Repository,
	tx domain.TransactionManager,
	events *cloudevents.EventFactory,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StockApplicationService {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxMutationAttempts
	retry.InitialDelay = mutationRetryInitial
	retry.MaxDelay = mutationRetryMax
	retry.RetryableErrors = func(err error) bool {
		if domain.IsConflict(err) {
			if m != nil {
				m.RecordWriteConflict()
			}
			return true
		}
		return false
	}

	return &StockApplicationService{
		balances:  balances,
		movements: movements,
		sequences: sequences,
		products:  products,
		locations: locations,
		outbox:    outboxRepo,
		tx:        tx,
		events:    events,
		metrics:   m,
		logger:    logger,
		retry:     retry,
	}
}

// Receive books physical stock into a location, creating the balance lazily
// on first receipt for its key.
func (s *StockApplicationService) Receive(ctx context.Context, cmd ReceiveCommand) (*BalanceDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}
	if _, _, err := s.lookupCatalog(ctx, cmd.TenantID, cmd.ProductID, cmd.LocationID); err != nil {
		return nil, err
	}

	key := domain.BalanceKey{
		TenantID:     cmd.TenantID,
		ProductID:    cmd.ProductID,
		LocationID:   cmd.LocationID,
		BatchNumber:  cmd.BatchNumber,
		SerialNumber: cmd.SerialNumber,
	}

	balance, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		b, err := s.balances.FindOrCreate(txCtx, key)
		if err != nil {
			return nil, err
		}
		if err := b.Receive(cmd.Quantity); err != nil {
			return nil, err
		}
		b.BackfillExpiry(cmd.ExpiryDate)

		m, err := s.newMovement(txCtx, cmd.TenantID, domain.MovementTypeReceipt, cmd.ProductID, cmd.Quantity)
		if err != nil {
			return nil, err
		}
		m.ToLocationID = cmd.LocationID
		m.BatchNumber = cmd.BatchNumber
		m.SerialNumber = cmd.SerialNumber
		m.ReferenceType = cmd.ReferenceType
		m.ReferenceID = cmd.ReferenceID
		m.ReferenceNumber = cmd.ReferenceNumber
		m.Notes = cmd.Notes

		if err := s.appendMovement(txCtx, m); err != nil {
			return nil, err
		}
		if err := s.balances.Update(txCtx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		s.logger.Error("Failed to receive stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID, "error", err)
		return nil, toAppError(err)
	}

	s.recordMovement(domain.MovementTypeReceipt)
	s.logger.Info("Received stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID,
		"quantity", cmd.Quantity.String())
	return ToBalanceDTO(balance), nil
}

// Issue removes physical stock from a location. When on-hand drops under
// the product's minimum stock level a low-stock event is appended to the
// outbox inside the same transaction, so the alert is delivered exactly when
// the stock change is durable.
func (s *StockApplicationService) Issue(ctx context.Context, cmd IssueCommand) (*BalanceDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}
	product, location, err := s.lookupCatalog(ctx, cmd.TenantID, cmd.ProductID, cmd.LocationID)
	if err != nil {
		return nil, err
	}

	key := domain.BalanceKey{
		TenantID:     cmd.TenantID,
		ProductID:    cmd.ProductID,
		LocationID:   cmd.LocationID,
		BatchNumber:  cmd.BatchNumber,
		SerialNumber: cmd.SerialNumber,
	}

	lowStock := false
	balance, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		lowStock = false
		b, err := s.findBalance(txCtx, key)
		if err != nil {
			return nil, err
		}
		if err := b.Issue(cmd.Quantity); err != nil {
			return nil, err
		}

		m, err := s.newMovement(txCtx, cmd.TenantID, domain.MovementTypeIssue, cmd.ProductID, cmd.Quantity)
		if err != nil {
			return nil, err
		}
		m.FromLocationID = cmd.LocationID
		m.BatchNumber = cmd.BatchNumber
		m.SerialNumber = cmd.SerialNumber
		m.ReferenceType = cmd.ReferenceType
		m.ReferenceID = cmd.ReferenceID
		m.ReferenceNumber = cmd.ReferenceNumber
		m.Notes = cmd.Notes

		if err := s.appendMovement(txCtx, m); err != nil {
			return nil, err
		}

		if product.MinStockLevel.IsPositive() && b.OnHand.LessThan(product.MinStockLevel) {
			lowStock = true
			alert := domain.StockLevelLow{
				TenantID:     cmd.TenantID,
				ProductID:    product.ID,
				SKU:          product.SKU,
				LocationID:   location.ID,
				LocationCode: location.Code,
				OnHand:       b.OnHand,
				Threshold:    product.MinStockLevel,
			}
			if err := s.appendEvent(txCtx, alert, aggregateTypeProduct, kafka.Topics.StockAlerts); err != nil {
				return nil, err
			}
		}

		if err := s.balances.Update(txCtx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		s.logger.Error("Failed to issue stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID, "error", err)
		return nil, toAppError(err)
	}

	s.recordMovement(domain.MovementTypeIssue)
	if lowStock {
		if s.metrics != nil {
			s.metrics.RecordLowStockAlert()
		}
		s.logger.Warn("Stock level below minimum",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "sku", product.SKU,
			"onHand", balance.OnHand.String(), "threshold", product.MinStockLevel.String())
	}
	s.logger.Info("Issued stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID,
		"quantity", cmd.Quantity.String())
	return ToBalanceDTO(balance), nil
}

// Transfer relocates stock between two locations as one atomic unit with a
// single ledger entry carrying both locations. Balances are read and written
// in canonical key order so opposing transfers cannot deadlock.
func (s *StockApplicationService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}
	if cmd.FromLocationID == cmd.ToLocationID {
		return nil, toAppError(domain.ErrSameLocation)
	}
	if _, _, err := s.lookupCatalog(ctx, cmd.TenantID, cmd.ProductID, cmd.FromLocationID); err != nil {
		return nil, err
	}
	if _, err := s.lookupLocation(ctx, cmd.TenantID, cmd.ToLocationID); err != nil {
		return nil, err
	}

	srcKey := domain.BalanceKey{
		TenantID:    cmd.TenantID,
		ProductID:   cmd.ProductID,
		LocationID:  cmd.FromLocationID,
		BatchNumber: cmd.BatchNumber,
	}
	dstKey := domain.BalanceKey{
		TenantID:    cmd.TenantID,
		ProductID:   cmd.ProductID,
		LocationID:  cmd.ToLocationID,
		BatchNumber: cmd.BatchNumber,
	}

	ordered := []domain.BalanceKey{srcKey, dstKey}
	if dstKey.Less(srcKey) {
		ordered[0], ordered[1] = dstKey, srcKey
	}

	var result *TransferDTO
	_, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		byKey := make(map[domain.BalanceKey]*domain.StockBalance, 2)
		for _, k := range ordered {
			if k == srcKey {
				b, err := s.findBalance(txCtx, k)
				if err != nil {
					return nil, err
				}
				byKey[k] = b
			} else {
				b, err := s.balances.FindOrCreate(txCtx, k)
				if err != nil {
					return nil, err
				}
				byKey[k] = b
			}
		}
		src, dst := byKey[srcKey], byKey[dstKey]

		if err := src.Issue(cmd.Quantity); err != nil {
			return nil, err
		}
		if err := dst.Receive(cmd.Quantity); err != nil {
			return nil, err
		}
		dst.BackfillExpiry(src.ExpiryDate)

		m, err := s.newMovement(txCtx, cmd.TenantID, domain.MovementTypeTransfer, cmd.ProductID, cmd.Quantity)
		if err != nil {
			return nil, err
		}
		m.FromLocationID = cmd.FromLocationID
		m.ToLocationID = cmd.ToLocationID
		m.BatchNumber = cmd.BatchNumber
		m.ReferenceType = cmd.ReferenceType
		m.ReferenceID = cmd.ReferenceID
		m.Notes = cmd.Notes

		if err := s.appendMovement(txCtx, m); err != nil {
			return nil, err
		}

		for _, k := range ordered {
			if err := s.balances.Update(txCtx, byKey[k]); err != nil {
				return nil, err
			}
		}

		result = &TransferDTO{
			From:     ToBalanceDTO(src),
			To:       ToBalanceDTO(dst),
			Movement: ToMovementDTO(m),
		}
		return src, nil
	})
	if err != nil {
		s.logger.Error("Failed to transfer stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID,
			"from", cmd.FromLocationID, "to", cmd.ToLocationID, "error", err)
		return nil, toAppError(err)
	}

	s.recordMovement(domain.MovementTypeTransfer)
	s.logger.Info("Transferred stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID,
		"from", cmd.FromLocationID, "to", cmd.ToLocationID, "quantity", cmd.Quantity.String())
	return result, nil
}

// Adjust sets on-hand to an absolute quantity, recording the delta as an
// adjustment entry. A no-change adjustment is rejected and writes nothing.
func (s *StockApplicationService) Adjust(ctx context.Context, cmd AdjustCommand) (*BalanceDTO, error) {
	if _, _, err := s.lookupCatalog(ctx, cmd.TenantID, cmd.ProductID, cmd.LocationID); err != nil {
		return nil, err
	}

	key := domain.BalanceKey{
		TenantID:     cmd.TenantID,
		ProductID:    cmd.ProductID,
		LocationID:   cmd.LocationID,
		BatchNumber:  cmd.BatchNumber,
		SerialNumber: cmd.SerialNumber,
	}

	balance, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		b, err := s.balances.FindOrCreate(txCtx, key)
		if err != nil {
			return nil, err
		}
		delta, err := b.AdjustTo(cmd.NewQuantity)
		if err != nil {
			return nil, err
		}

		m, err := s.newMovement(txCtx, cmd.TenantID, domain.MovementTypeAdjustment, cmd.ProductID, delta.Abs())
		if err != nil {
			return nil, err
		}
		if delta.IsPositive() {
			m.ToLocationID = cmd.LocationID
		} else {
			m.FromLocationID = cmd.LocationID
		}
		m.BatchNumber = cmd.BatchNumber
		m.SerialNumber = cmd.SerialNumber
		m.ReasonCode = cmd.ReasonCode
		m.Notes = cmd.Notes

		if err := s.appendMovement(txCtx, m); err != nil {
			return nil, err
		}
		if err := s.balances.Update(txCtx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		s.logger.Error("Failed to adjust stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID, "error", err)
		return nil, toAppError(err)
	}

	s.recordMovement(domain.MovementTypeAdjustment)
	s.logger.Info("Adjusted stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID,
		"newQuantity", cmd.NewQuantity.String(), "reasonCode", cmd.ReasonCode)
	return ToBalanceDTO(balance), nil
}

// Reserve soft-allocates available stock. No ledger entry is written; a
// reservation narrows availability without moving anything.
func (s *StockApplicationService) Reserve(ctx context.Context, cmd ReserveCommand) (*BalanceDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	key := domain.BalanceKey{
		TenantID:    cmd.TenantID,
		ProductID:   cmd.ProductID,
		LocationID:  cmd.LocationID,
		BatchNumber: cmd.BatchNumber,
	}

	balance, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		b, err := s.findBalance(txCtx, key)
		if err != nil {
			return nil, err
		}
		if err := b.Reserve(cmd.Quantity); err != nil {
			return nil, err
		}
		if err := s.balances.Update(txCtx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		s.logger.Error("Failed to reserve stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID, "error", err)
		return nil, toAppError(err)
	}

	s.logger.Info("Reserved stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID,
		"quantity", cmd.Quantity.String())
	return ToBalanceDTO(balance), nil
}

// Release returns previously reserved stock to the available pool.
func (s *StockApplicationService) Release(ctx context.Context, cmd ReleaseCommand) (*BalanceDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	key := domain.BalanceKey{
		TenantID:    cmd.TenantID,
		ProductID:   cmd.ProductID,
		LocationID:  cmd.LocationID,
		BatchNumber: cmd.BatchNumber,
	}

	balance, err := s.mutate(ctx, func(txCtx context.Context) (*domain.StockBalance, error) {
		b, err := s.findBalance(txCtx, key)
		if err != nil {
			return nil, err
		}
		if err := b.Release(cmd.Quantity); err != nil {
			return nil, err
		}
		if err := s.balances.Update(txCtx, b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		s.logger.Error("Failed to release stock",
			"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID, "error", err)
		return nil, toAppError(err)
	}

	s.logger.Info("Released stock",
		"tenantId", cmd.TenantID, "productId", cmd.ProductID, "locationId", cmd.LocationID,
		"quantity", cmd.Quantity.String())
	return ToBalanceDTO(balance), nil
}

// mutate runs fn inside one transaction and retries the whole transaction
// on transient write conflicts. Business failures abort immediately.
func (s *StockApplicationService) mutate(ctx context.Context, fn func(txCtx context.Context) (*domain.StockBalance, error)) (*domain.StockBalance, error) {
	return resilience.RetryWithResult(ctx, s.retry, func() (*domain.StockBalance, error) {
		var out *domain.StockBalance
		err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			b, err := fn(txCtx)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (s *StockApplicationService) findBalance(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	b, err := s.balances.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrBalanceNotFound
	}
	return b, nil
}

func (s *StockApplicationService) newMovement(ctx context.Context, tenantID string, movementType domain.MovementType, productID string, qty decimal.Decimal) (*domain.Movement, error) {
	number, err := s.sequences.Next(ctx, tenantID, domain.MovementNumberPrefix)
	if err != nil {
		return nil, err
	}
	return domain.NewMovement(tenantID, number, movementType, productID, qty), nil
}

// appendMovement validates and writes the ledger entry and its outbox event.
func (s *StockApplicationService) appendMovement(ctx context.Context, m *domain.Movement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.movements.Append(ctx, m); err != nil {
		return err
	}
	event := domain.StockMovementRecorded{
		TenantID:       m.TenantID,
		MovementID:     m.ID,
		MovementNumber: m.MovementNumber,
		MovementType:   m.MovementType,
		ProductID:      m.ProductID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		Quantity:       m.Quantity,
		BatchNumber:    m.BatchNumber,
		SerialNumber:   m.SerialNumber,
		MovementDate:   m.MovementDate,
	}
	return s.appendEvent(ctx, event, aggregateTypeMovement, kafka.Topics.StockMovements)
}

// appendEvent wraps a domain event in a CloudEvent envelope and saves it to
// the outbox within the ambient transaction.
func (s *StockApplicationService) appendEvent(ctx context.Context, event domain.Event, aggregateType, topic string) error {
	ce := s.events.CreateTenantEvent(ctx, event.Tenant(), event.EventType(), event.EventType()+"/"+event.AggregateID(), event)
	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(event.AggregateID(), aggregateType, topic, ce)
	if err != nil {
		return err
	}
	return s.outbox.Save(ctx, outboxEvent)
}

func (s *StockApplicationService) lookupCatalog(ctx context.Context, tenantID, productID, locationID string) (*domain.Product, *domain.Location, error) {
	product, err := s.products.FindByID(ctx, tenantID, productID)
	if err != nil {
		return nil, nil, toAppError(err)
	}
	if product == nil {
		return nil, nil, toAppError(domain.ErrProductNotFound)
	}
	location, err := s.lookupLocation(ctx, tenantID, locationID)
	if err != nil {
		return nil, nil, err
	}
	return product, location, nil
}

func (s *StockApplicationService) lookupLocation(ctx context.Context, tenantID, locationID string) (*domain.Location, error) {
	location, err := s.locations.FindByID(ctx, tenantID, locationID)
	if err != nil {
		return nil, toAppError(err)
	}
	if location == nil {
		return nil, toAppError(domain.ErrLocationNotFound)
	}
	return location, nil
}

func (s *StockApplicationService) recordMovement(movementType domain.MovementType) {
	if s.metrics != nil {
		s.metrics.RecordMovement(string(movementType))
	}
}
