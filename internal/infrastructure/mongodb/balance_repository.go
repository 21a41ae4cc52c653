package mongodb

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
)

const balanceCollection = "stock_balances"

// BalanceRepository is the MongoDB implementation of domain.BalanceRepository.
// Updates are guarded by the balance version: a write that matches no document
// means another writer committed first and the caller must retry.
type BalanceRepository struct {
	collection *mongodb.InstrumentedCollection
}

func NewBalanceRepository(client *mongodb.InstrumentedClient) *BalanceRepository {
	return &BalanceRepository{collection: client.Collection(balanceCollection)}
}

func keyFilter(key domain.BalanceKey) bson.M {
	return bson.M{
		"tenantId":     key.TenantID,
		"productId":    key.ProductID,
		"locationId":   key.LocationID,
		"batchNumber":  key.BatchNumber,
		"serialNumber": key.SerialNumber,
	}
}

// FindOrCreate returns the balance for a key, inserting a zero balance when
// none exists yet. A concurrent insert of the same key loses against the
// unique index and falls back to reading the winner's row.
func (r *BalanceRepository) FindOrCreate(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	balance, err := r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}

	created := domain.NewStockBalance(key)
	doc, err := newBalanceDocument(created)
	if err != nil {
		return nil, err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: balance for key already created", domain.ErrWriteConflict)
		}
		return nil, fmt.Errorf("failed to create stock balance: %w", err)
	}
	return created, nil
}

// Find returns (nil, nil) when no balance exists for the key.
func (r *BalanceRepository) Find(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	var doc balanceDocument
	err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stock balance: %w", err)
	}
	return doc.toDomain()
}

// Update persists a mutated balance. The filter pins the version the caller
// read; zero matches means a concurrent writer bumped it in between.
func (r *BalanceRepository) Update(ctx context.Context, balance *domain.StockBalance) error {
	doc, err := newBalanceDocument(balance)
	if err != nil {
		return err
	}
	nextVersion := balance.Version + 1

	filter := bson.M{"_id": balance.ID, "version": balance.Version}
	update := bson.M{"$set": bson.M{
		"onHand":         doc.OnHand,
		"reserved":       doc.Reserved,
		"expiryDate":     doc.ExpiryDate,
		"lastMovementAt": doc.LastMovementAt,
		"lastCountAt":    doc.LastCountAt,
		"updatedAt":      doc.UpdatedAt,
		"version":        nextVersion,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update stock balance: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: balance %s version %d", domain.ErrWriteConflict, balance.ID, balance.Version)
	}

	balance.Version = nextVersion
	return nil
}

func queryFilter(tenantID string, filter domain.BalanceFilter) bson.M {
	match := bson.M{"tenantId": tenantID}
	if filter.ProductID != "" {
		match["productId"] = filter.ProductID
	}
	if filter.LocationID != "" {
		match["locationId"] = filter.LocationID
	}
	if filter.BatchNumber != "" {
		match["batchNumber"] = filter.BatchNumber
	}
	return match
}

// Query returns a page of balances plus the total match count.
func (r *BalanceRepository) Query(ctx context.Context, tenantID string, filter domain.BalanceFilter, limit, offset int64) ([]*domain.StockBalance, int64, error) {
	match := queryFilter(tenantID, filter)

	total, err := r.collection.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count stock balances: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "productId", Value: 1}, {Key: "locationId", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, match, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query stock balances: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*balanceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode stock balances: %w", err)
	}

	balances := make([]*domain.StockBalance, len(docs))
	for i, doc := range docs {
		if balances[i], err = doc.toDomain(); err != nil {
			return nil, 0, err
		}
	}
	return balances, total, nil
}

// SumAvailable aggregates on-hand minus reserved across every balance that
// matches the filter. Summing in the database keeps the read consistent with
// what a concurrent mutation just committed.
func (r *BalanceRepository) SumAvailable(ctx context.Context, tenantID string, filter domain.BalanceFilter) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: queryFilter(tenantID, filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"available": bson.M{"$sum": bson.M{"$subtract": bson.A{"$onHand", "$reserved"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum available stock: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Available primitive.Decimal128 `bson:"available"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode available stock sum: %w", err)
	}
	if len(results) == 0 {
		return decimal.Zero, nil
	}
	return fromDecimal128(results[0].Available)
}

// EnsureIndexes creates the balance indexes. The unique compound index on the
// full key doubles as the guard against duplicate balance rows.
func (r *BalanceRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "productId", Value: 1},
				{Key: "locationId", Value: 1},
				{Key: "batchNumber", Value: 1},
				{Key: "serialNumber", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "locationId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "expiryDate", Value: 1}},
		},
	}

	for _, model := range indexes {
		if _, err := r.collection.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("failed to create balance index: %w", err)
		}
	}
	return nil
}
