package main

import (
	"context"
	"flag"
	"log"
	"time"

	infra "github.com/warehousekit/stock-ledger/internal/infrastructure/mongodb"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/metrics"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
	outboxMongo "github.com/warehousekit/stock-ledger/pkg/outbox/mongodb"
)

// Index migration tool. Creates the indexes every collection needs before
// the API serves traffic: the unique balance key, the unique movement
// number, the sequence counter key and the outbox polling indexes.

var (
	mongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName   = flag.String("db", "stockledger", "Database name")
	timeout  = flag.Duration("timeout", 60*time.Second, "Overall timeout for index creation")
)

func main() {
	flag.Parse()

	log.Printf("Creating indexes on %s/%s", *mongoURI, *dbName)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config := mongodb.DefaultConfig()
	config.URI = *mongoURI
	config.Database = *dbName

	rawClient, err := mongodb.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer rawClient.Close(context.Background())

	logger := logging.New(logging.DefaultConfig("stock-ledger-migrate"))
	m := metrics.New(metrics.DefaultConfig("stock-ledger-migrate"))
	client := mongodb.NewInstrumentedClient(rawClient, m, logger)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"stock_balances", infra.NewBalanceRepository(client).EnsureIndexes},
		{"stock_movements", infra.NewMovementRepository(client).EnsureIndexes},
		{"sequence_counters", infra.NewSequenceRepository(client).EnsureIndexes},
		{"products", infra.NewProductRepository(client).EnsureIndexes},
		{"locations", infra.NewLocationRepository(client).EnsureIndexes},
		{"outbox_events", outboxMongo.NewOutboxRepository(client.Database()).EnsureIndexes},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			log.Fatalf("Failed to create indexes for %s: %v", step.name, err)
		}
		log.Printf("Indexes ready: %s", step.name)
	}

	log.Println("All indexes created")
}
