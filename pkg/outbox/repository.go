package outbox

import (
	"context"
	"time"
)

// Repository defines the interface for outbox event persistence
type Repository interface {
	// Save persists an outbox event. It participates in the caller's
	// transaction when the context carries a session.
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll persists multiple outbox events
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns unpublished events that have not exhausted
	// their retries, oldest first.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished marks an event as published
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error

	// IncrementRetry increments the retry count and records the error
	IncrementRetry(ctx context.Context, id string, lastError string) error

	// DeletePublished removes published events older than the given time
	DeletePublished(ctx context.Context, olderThan time.Time) (int64, error)

	// GetByID returns a single event by ID
	GetByID(ctx context.Context, id string) (*OutboxEvent, error)

	// FindByAggregateID returns all events for an aggregate, oldest first
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
