package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warehousekit/stock-ledger/pkg/logging"
)

// EventFactory creates CloudEvents for stock ledger domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new CloudEvent with the given parameters. The
// correlation id is picked up from the request context when present.
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *CloudEvent {
	event := &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if v := ctx.Value(logging.CorrelationIDKey); v != nil {
		if correlationID, ok := v.(string); ok {
			event.CorrelationID = correlationID
		}
	}

	return event
}

// CreateTenantEvent creates an event scoped to a tenant.
func (f *EventFactory) CreateTenantEvent(
	ctx context.Context,
	tenantID string,
	eventType string,
	subject string,
	data interface{},
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.TenantID = tenantID
	return event
}
