package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
)

const (
	productCollection  = "products"
	locationCollection = "locations"
)

// ProductRepository backs catalog lookups for products.
type ProductRepository struct {
	collection *mongodb.InstrumentedCollection
}

func NewProductRepository(client *mongodb.InstrumentedClient) *ProductRepository {
	return &ProductRepository{collection: client.Collection(productCollection)}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	doc, err := newProductDocument(product)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("product with SKU %s already exists: %w", product.SKU, err)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the product does not exist.
func (r *ProductRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Product, error) {
	var doc productDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return doc.toDomain()
}

func (r *ProductRepository) List(ctx context.Context, tenantID string, limit, offset int64) ([]*domain.Product, int64, error) {
	filter := bson.M{"tenantId": tenantID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sku", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]*domain.Product, len(docs))
	for i, doc := range docs {
		if products[i], err = doc.toDomain(); err != nil {
			return nil, 0, err
		}
	}
	return products, total, nil
}

func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "sku", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.CreateIndex(ctx, model); err != nil {
		return fmt.Errorf("failed to create product index: %w", err)
	}
	return nil
}

// LocationRepository backs catalog lookups for storage locations.
type LocationRepository struct {
	collection *mongodb.InstrumentedCollection
}

func NewLocationRepository(client *mongodb.InstrumentedClient) *LocationRepository {
	return &LocationRepository{collection: client.Collection(locationCollection)}
}

func (r *LocationRepository) Create(ctx context.Context, location *domain.Location) error {
	if _, err := r.collection.InsertOne(ctx, newLocationDocument(location)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("location with code %s already exists: %w", location.Code, err)
		}
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the location does not exist.
func (r *LocationRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Location, error) {
	var doc locationDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *LocationRepository) List(ctx context.Context, tenantID string, limit, offset int64) ([]*domain.Location, int64, error) {
	filter := bson.M{"tenantId": tenantID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count locations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "code", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list locations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*locationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode locations: %w", err)
	}

	locations := make([]*domain.Location, len(docs))
	for i, doc := range docs {
		locations[i] = doc.toDomain()
	}
	return locations, total, nil
}

func (r *LocationRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.CreateIndex(ctx, model); err != nil {
		return fmt.Errorf("failed to create location index: %w", err)
	}
	return nil
}
