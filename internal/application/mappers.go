package application

import (
	"github.com/warehousekit/stock-ledger/internal/domain"
)

// ToBalanceDTO converts a domain balance to its caller-facing view.
func ToBalanceDTO(b *domain.StockBalance) *BalanceDTO {
	return &BalanceDTO{
		ProductID:    b.Key.ProductID,
		LocationID:   b.Key.LocationID,
		BatchNumber:  b.Key.BatchNumber,
		SerialNumber: b.Key.SerialNumber,
		OnHand:       b.OnHand,
		Reserved:     b.Reserved,
		Available:    b.Available(),
		ExpiryDate:   b.ExpiryDate,
		LastMovement: b.LastMovementAt,
		LastCountAt:  b.LastCountAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// ToBalanceDTOs converts a slice of domain balances.
func ToBalanceDTOs(balances []*domain.StockBalance) []*BalanceDTO {
	dtos := make([]*BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = ToBalanceDTO(b)
	}
	return dtos
}

// ToMovementDTO converts a ledger entry to its caller-facing view.
func ToMovementDTO(m *domain.Movement) *MovementDTO {
	return &MovementDTO{
		ID:              m.ID,
		MovementNumber:  m.MovementNumber,
		MovementType:    string(m.MovementType),
		ProductID:       m.ProductID,
		FromLocationID:  m.FromLocationID,
		ToLocationID:    m.ToLocationID,
		Quantity:        m.Quantity,
		BatchNumber:     m.BatchNumber,
		SerialNumber:    m.SerialNumber,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		ReasonCode:      m.ReasonCode,
		Notes:           m.Notes,
		MovementDate:    m.MovementDate,
		CreatedAt:       m.CreatedAt,
	}
}

// ToMovementDTOs converts a slice of ledger entries.
func ToMovementDTOs(movements []*domain.Movement) []*MovementDTO {
	dtos := make([]*MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = ToMovementDTO(m)
	}
	return dtos
}

// ToProductDTO converts a catalog product.
func ToProductDTO(p *domain.Product) *ProductDTO {
	return &ProductDTO{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		MinStockLevel: p.MinStockLevel,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ToLocationDTO converts a storage location.
func ToLocationDTO(l *domain.Location) *LocationDTO {
	return &LocationDTO{
		ID:          l.ID,
		Code:        l.Code,
		WarehouseID: l.WarehouseID,
		Name:        l.Name,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
