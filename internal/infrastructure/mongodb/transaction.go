package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/warehousekit/stock-ledger/internal/domain"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
)

const transientTransactionError = "TransientTransactionError"

// TransactionManager runs a function inside one MongoDB transaction. The
// context handed to fn carries the session, so every repository call made
// with it joins the transaction.
type TransactionManager struct {
	client *mongodb.InstrumentedClient
}

func NewTransactionManager(client *mongodb.InstrumentedClient) *TransactionManager {
	return &TransactionManager{client: client}
}

func (m *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
	if err == nil {
		return nil
	}
	// Storage-level write conflicts surface as transient transaction
	// errors. Translate them so the caller's retry loop treats them the
	// same as a version conflict.
	if isTransient(err) && !domain.IsConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrWriteConflict, err)
	}
	return err
}

func isTransient(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel(transientTransactionError)
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		return writeErr.HasErrorLabel(transientTransactionError)
	}
	return false
}
