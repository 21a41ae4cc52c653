package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/warehousekit/stock-ledger/internal/domain"
)

// Quantities are stored as Decimal128 so MongoDB can aggregate them without
// losing precision. Conversion failures must abort the write: a quantity that
// does not fit in Decimal128 would otherwise be persisted as zero while the
// caller sees the full value.

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("quantity %s does not fit in Decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored quantity %q is not a valid decimal: %w", v.String(), err)
	}
	return d, nil
}

type balanceDocument struct {
	ID             string               `bson:"_id"`
	TenantID       string               `bson:"tenantId"`
	ProductID      string               `bson:"productId"`
	LocationID     string               `bson:"locationId"`
	BatchNumber    string               `bson:"batchNumber"`
	SerialNumber   string               `bson:"serialNumber"`
	OnHand         primitive.Decimal128 `bson:"onHand"`
	Reserved       primitive.Decimal128 `bson:"reserved"`
	ExpiryDate     *time.Time           `bson:"expiryDate,omitempty"`
	LastMovementAt *time.Time           `bson:"lastMovementAt,omitempty"`
	LastCountAt    *time.Time           `bson:"lastCountAt,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
	Version        int64                `bson:"version"`
}

func newBalanceDocument(b *domain.StockBalance) (*balanceDocument, error) {
	onHand, err := toDecimal128(b.OnHand)
	if err != nil {
		return nil, err
	}
	reserved, err := toDecimal128(b.Reserved)
	if err != nil {
		return nil, err
	}
	return &balanceDocument{
		ID:             b.ID,
		TenantID:       b.Key.TenantID,
		ProductID:      b.Key.ProductID,
		LocationID:     b.Key.LocationID,
		BatchNumber:    b.Key.BatchNumber,
		SerialNumber:   b.Key.SerialNumber,
		OnHand:         onHand,
		Reserved:       reserved,
		ExpiryDate:     b.ExpiryDate,
		LastMovementAt: b.LastMovementAt,
		LastCountAt:    b.LastCountAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
		Version:        b.Version,
	}, nil
}

func (d *balanceDocument) toDomain() (*domain.StockBalance, error) {
	onHand, err := fromDecimal128(d.OnHand)
	if err != nil {
		return nil, err
	}
	reserved, err := fromDecimal128(d.Reserved)
	if err != nil {
		return nil, err
	}
	return &domain.StockBalance{
		ID: d.ID,
		Key: domain.BalanceKey{
			TenantID:     d.TenantID,
			ProductID:    d.ProductID,
			LocationID:   d.LocationID,
			BatchNumber:  d.BatchNumber,
			SerialNumber: d.SerialNumber,
		},
		OnHand:         onHand,
		Reserved:       reserved,
		ExpiryDate:     d.ExpiryDate,
		LastMovementAt: d.LastMovementAt,
		LastCountAt:    d.LastCountAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Version:        d.Version,
	}, nil
}

type movementDocument struct {
	ID              string               `bson:"_id"`
	TenantID        string               `bson:"tenantId"`
	MovementNumber  string               `bson:"movementNumber"`
	MovementType    string               `bson:"movementType"`
	ProductID       string               `bson:"productId"`
	FromLocationID  string               `bson:"fromLocationId,omitempty"`
	ToLocationID    string               `bson:"toLocationId,omitempty"`
	Quantity        primitive.Decimal128 `bson:"quantity"`
	BatchNumber     string               `bson:"batchNumber,omitempty"`
	SerialNumber    string               `bson:"serialNumber,omitempty"`
	ReferenceType   string               `bson:"referenceType,omitempty"`
	ReferenceID     string               `bson:"referenceId,omitempty"`
	ReferenceNumber string               `bson:"referenceNumber,omitempty"`
	ReasonCode      string               `bson:"reasonCode,omitempty"`
	Notes           string               `bson:"notes,omitempty"`
	MovementDate    time.Time            `bson:"movementDate"`
	CreatedAt       time.Time            `bson:"createdAt"`
}

func newMovementDocument(m *domain.Movement) (*movementDocument, error) {
	quantity, err := toDecimal128(m.Quantity)
	if err != nil {
		return nil, err
	}
	return &movementDocument{
		ID:              m.ID,
		TenantID:        m.TenantID,
		MovementNumber:  m.MovementNumber,
		MovementType:    string(m.MovementType),
		ProductID:       m.ProductID,
		FromLocationID:  m.FromLocationID,
		ToLocationID:    m.ToLocationID,
		Quantity:        quantity,
		BatchNumber:     m.BatchNumber,
		SerialNumber:    m.SerialNumber,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		ReasonCode:      m.ReasonCode,
		Notes:           m.Notes,
		MovementDate:    m.MovementDate,
		CreatedAt:       m.CreatedAt,
	}, nil
}

func (d *movementDocument) toDomain() (*domain.Movement, error) {
	quantity, err := fromDecimal128(d.Quantity)
	if err != nil {
		return nil, err
	}
	return &domain.Movement{
		ID:              d.ID,
		TenantID:        d.TenantID,
		MovementNumber:  d.MovementNumber,
		MovementType:    domain.MovementType(d.MovementType),
		ProductID:       d.ProductID,
		FromLocationID:  d.FromLocationID,
		ToLocationID:    d.ToLocationID,
		Quantity:        quantity,
		BatchNumber:     d.BatchNumber,
		SerialNumber:    d.SerialNumber,
		ReferenceType:   d.ReferenceType,
		ReferenceID:     d.ReferenceID,
		ReferenceNumber: d.ReferenceNumber,
		ReasonCode:      d.ReasonCode,
		Notes:           d.Notes,
		MovementDate:    d.MovementDate,
		CreatedAt:       d.CreatedAt,
	}, nil
}

type productDocument struct {
	ID            string               `bson:"_id"`
	TenantID      string               `bson:"tenantId"`
	SKU           string               `bson:"sku"`
	Name          string               `bson:"name"`
	MinStockLevel primitive.Decimal128 `bson:"minStockLevel"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func newProductDocument(p *domain.Product) (*productDocument, error) {
	minStock, err := toDecimal128(p.MinStockLevel)
	if err != nil {
		return nil, err
	}
	return &productDocument{
		ID:            p.ID,
		TenantID:      p.TenantID,
		SKU:           p.SKU,
		Name:          p.Name,
		MinStockLevel: minStock,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func (d *productDocument) toDomain() (*domain.Product, error) {
	minStock, err := fromDecimal128(d.MinStockLevel)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:            d.ID,
		TenantID:      d.TenantID,
		SKU:           d.SKU,
		Name:          d.Name,
		MinStockLevel: minStock,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

type locationDocument struct {
	ID          string    `bson:"_id"`
	TenantID    string    `bson:"tenantId"`
	Code        string    `bson:"code"`
	WarehouseID string    `bson:"warehouseId"`
	Name        string    `bson:"name"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func newLocationDocument(l *domain.Location) *locationDocument {
	return &locationDocument{
		ID:          l.ID,
		TenantID:    l.TenantID,
		Code:        l.Code,
		WarehouseID: l.WarehouseID,
		Name:        l.Name,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func (d *locationDocument) toDomain() *domain.Location {
	return &domain.Location{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Code:        d.Code,
		WarehouseID: d.WarehouseID,
		Name:        d.Name,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
