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

const movementCollection = "stock_movements"

// MovementRepository persists the append-only movement ledger. There is no
// update or delete path; corrections are new adjustment entries.
type MovementRepository struct {
	collection *mongodb.InstrumentedCollection
}

func NewMovementRepository(client *mongodb.InstrumentedClient) *MovementRepository {
	return &MovementRepository{collection: client.Collection(movementCollection)}
}

// Append writes one ledger entry.
func (r *MovementRepository) Append(ctx context.Context, movement *domain.Movement) error {
	doc, err := newMovementDocument(movement)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// HistoryByProduct returns a page of movements for a product, newest first,
// plus the total count.
func (r *MovementRepository) HistoryByProduct(ctx context.Context, tenantID, productID string, limit, offset int64) ([]*domain.Movement, int64, error) {
	filter := bson.M{"tenantId": tenantID, "productId": productID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query movements: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*movementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode movements: %w", err)
	}

	movements := make([]*domain.Movement, len(docs))
	for i, doc := range docs {
		if movements[i], err = doc.toDomain(); err != nil {
			return nil, 0, err
		}
	}
	return movements, total, nil
}

// FindByBalanceKey returns every movement that touched a balance key, oldest
// first, for ledger replay.
func (r *MovementRepository) FindByBalanceKey(ctx context.Context, key domain.BalanceKey) ([]*domain.Movement, error) {
	filter := bson.M{
		"tenantId":  key.TenantID,
		"productId": key.ProductID,
		"$or": bson.A{
			bson.M{"fromLocationId": key.LocationID},
			bson.M{"toLocationId": key.LocationID},
		},
	}
	if key.BatchNumber != "" {
		filter["batchNumber"] = key.BatchNumber
	} else {
		filter["batchNumber"] = bson.M{"$in": bson.A{nil, ""}}
	}
	if key.SerialNumber != "" {
		filter["serialNumber"] = key.SerialNumber
	} else {
		filter["serialNumber"] = bson.M{"$in": bson.A{nil, ""}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for balance key: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*movementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode movements: %w", err)
	}

	movements := make([]*domain.Movement, len(docs))
	for i, doc := range docs {
		if movements[i], err = doc.toDomain(); err != nil {
			return nil, err
		}
	}
	return movements, nil
}

// EnsureIndexes creates the ledger indexes. Movement numbers are unique per
// tenant.
func (r *MovementRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "movementNumber", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "productId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "fromLocationId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "toLocationId", Value: 1}},
		},
	}

	for _, model := range indexes {
		if _, err := r.collection.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("failed to create movement index: %w", err)
		}
	}
	return nil
}
