package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warehousekit/stock-ledger/pkg/mongodb"
)

const counterCollection = "sequence_counters"

const sequenceDayFormat = "20060102"

// SequenceRepository issues document numbers from per-day atomic counters.
// The counter advance happens inside the caller's transaction, so an aborted
// mutation leaves a gap in the sequence. Gaps are fine; the numbers only need
// to be unique and increasing within a day.
type SequenceRepository struct {
	collection *mongodb.InstrumentedCollection
}

func NewSequenceRepository(client *mongodb.InstrumentedClient) *SequenceRepository {
	return &SequenceRepository{collection: client.Collection(counterCollection)}
}

// Next returns the next number formatted as {PREFIX}-{yyyyMMdd}-{seq:04}.
func (r *SequenceRepository) Next(ctx context.Context, tenantID, prefix string) (string, error) {
	day := time.Now().UTC().Format(sequenceDayFormat)

	filter := bson.M{"tenantId": tenantID, "prefix": prefix, "day": day}
	update := bson.M{
		"$inc":         bson.M{"value": 1},
		"$setOnInsert": bson.M{"createdAt": mongodb.Now()},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Value int64 `bson:"value"`
	}
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter); err != nil {
		return "", fmt.Errorf("failed to advance sequence %s for tenant %s: %w", prefix, tenantID, err)
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, day, counter.Value), nil
}

// EnsureIndexes creates the unique counter index.
func (r *SequenceRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "prefix", Value: 1},
			{Key: "day", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.CreateIndex(ctx, model); err != nil {
		return fmt.Errorf("failed to create sequence index: %w", err)
	}
	return nil
}
