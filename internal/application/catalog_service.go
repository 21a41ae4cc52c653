package application

import (
	"context"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/errors"
	"github.com/warehousekit/stock-ledger/pkg/logging"
)

// CatalogService manages the flat product and location records the stock
// engine validates against. Plain CRUD, no invariants beyond field checks.
type CatalogService struct {
	products  domain.ProductRepository
	locations domain.LocationRepository
	logger    *logging.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	products domain.ProductRepository,
	locations domain.LocationRepository,
	logger *logging.Logger,
) *CatalogService {
	return &CatalogService{
		products:  products,
		locations: locations,
		logger:    logger,
	}
}

// CreateProduct registers a catalog product.
func (s *CatalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*ProductDTO, error) {
	if cmd.SKU == "" {
		return nil, errors.ErrValidation("sku is required")
	}
	if cmd.MinStockLevel.IsNegative() {
		return nil, errors.ErrValidation("minStockLevel cannot be negative")
	}

	product := domain.NewProduct(cmd.TenantID, cmd.SKU, cmd.Name, cmd.MinStockLevel)
	if err := s.products.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", "tenantId", cmd.TenantID, "sku", cmd.SKU, "error", err)
		return nil, toAppError(err)
	}

	s.logger.Info("Created product", "tenantId", cmd.TenantID, "sku", cmd.SKU)
	return ToProductDTO(product), nil
}

// GetProduct returns one product by id.
func (s *CatalogService) GetProduct(ctx context.Context, tenantID, id string) (*ProductDTO, error) {
	product, err := s.products.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, toAppError(err)
	}
	if product == nil {
		return nil, errors.ErrNotFoundWithID("product", id)
	}
	return ToProductDTO(product), nil
}

// ListProducts pages through the tenant's products.
func (s *CatalogService) ListProducts(ctx context.Context, tenantID string, limit, offset int64) ([]*ProductDTO, int64, error) {
	products, total, err := s.products.List(ctx, tenantID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list products", "tenantId", tenantID, "error", err)
		return nil, 0, toAppError(err)
	}

	dtos := make([]*ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ToProductDTO(p)
	}
	return dtos, total, nil
}

// CreateLocation registers a storage location.
func (s *CatalogService) CreateLocation(ctx context.Context, cmd CreateLocationCommand) (*LocationDTO, error) {
	if cmd.Code == "" {
		return nil, errors.ErrValidation("code is required")
	}

	location := domain.NewLocation(cmd.TenantID, cmd.Code, cmd.WarehouseID, cmd.Name)
	if err := s.locations.Create(ctx, location); err != nil {
		s.logger.Error("Failed to create location", "tenantId", cmd.TenantID, "code", cmd.Code, "error", err)
		return nil, toAppError(err)
	}

	s.logger.Info("Created location", "tenantId", cmd.TenantID, "code", cmd.Code)
	return ToLocationDTO(location), nil
}

// GetLocation returns one location by id.
func (s *CatalogService) GetLocation(ctx context.Context, tenantID, id string) (*LocationDTO, error) {
	location, err := s.locations.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, toAppError(err)
	}
	if location == nil {
		return nil, errors.ErrNotFoundWithID("location", id)
	}
	return ToLocationDTO(location), nil
}

// ListLocations pages through the tenant's locations.
func (s *CatalogService) ListLocations(ctx context.Context, tenantID string, limit, offset int64) ([]*LocationDTO, int64, error) {
	locations, total, err := s.locations.List(ctx, tenantID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list locations", "tenantId", tenantID, "error", err)
		return nil, 0, toAppError(err)
	}

	dtos := make([]*LocationDTO, len(locations))
	for i, l := range locations {
		dtos[i] = ToLocationDTO(l)
	}
	return dtos, total, nil
}
