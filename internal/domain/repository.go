package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceFilter narrows balance queries. Empty fields match everything.
type BalanceFilter struct {
	ProductID   string
	LocationID  string
	BatchNumber string
}

// BalanceRepository persists stock balances. Find returns (nil, nil) when no
// balance exists for the key. Update applies optimistic concurrency on the
// balance version and returns ErrWriteConflict when another writer got there
// first.
type BalanceRepository interface {
	FindOrCreate(ctx context.Context, key BalanceKey) (*StockBalance, error)
	Find(ctx context.Context, key BalanceKey) (*StockBalance, error)
	Update(ctx context.Context, balance *StockBalance) error
	Query(ctx context.Context, tenantID string, filter BalanceFilter, limit, offset int64) ([]*StockBalance, int64, error)
	SumAvailable(ctx context.Context, tenantID string, filter BalanceFilter) (decimal.Decimal, error)
}

// MovementRepository is the append-only ledger. Entries are never updated or
// deleted once written.
type MovementRepository interface {
	Append(ctx context.Context, movement *Movement) error
	HistoryByProduct(ctx context.Context, tenantID, productID string, limit, offset int64) ([]*Movement, int64, error)
	FindByBalanceKey(ctx context.Context, key BalanceKey) ([]*Movement, error)
}

// SequenceGenerator issues document numbers unique and strictly increasing
// per (tenant, prefix, day). Gaps are acceptable; duplicates are not.
type SequenceGenerator interface {
	Next(ctx context.Context, tenantID, prefix string) (string, error)
}

// ProductRepository and LocationRepository back the catalog lookups. FindByID
// returns (nil, nil) when the record does not exist.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, tenantID, id string) (*Product, error)
	List(ctx context.Context, tenantID string, limit, offset int64) ([]*Product, int64, error)
}

type LocationRepository interface {
	Create(ctx context.Context, location *Location) error
	FindByID(ctx context.Context, tenantID, id string) (*Location, error)
	List(ctx context.Context, tenantID string, limit, offset int64) ([]*Location, int64, error)
}

// TransactionManager runs fn inside one atomic transaction. Every repository
// call made with the ctx passed to fn joins that transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
