package outbox

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warehousekit/stock-ledger/pkg/cloudevents"
	"github.com/warehousekit/stock-ledger/pkg/logging"
)

type memoryRepository struct {
	mu     sync.Mutex
	events []*OutboxEvent
}

func (r *memoryRepository) Save(_ context.Context, event *OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memoryRepository) SaveAll(ctx context.Context, events []*OutboxEvent) error {
	for _, e := range events {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRepository) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, e := range r.events {
		if e.ShouldRetry() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("not found: %s", id)
}

func (r *memoryRepository) IncrementRetry(_ context.Context, id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.RetryCount++
			e.LastError = lastError
			return nil
		}
	}
	return fmt.Errorf("not found: %s", id)
}

func (r *memoryRepository) DeletePublished(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*OutboxEvent
	var deleted int64
	for _, e := range r.events {
		if e.IsPublished() && e.PublishedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) FindByAggregateID(_ context.Context, aggregateID string) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, e := range r.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepository) get(id string) *OutboxEvent {
	e, _ := r.GetByID(context.Background(), id)
	return e
}

type recordingProducer struct {
	mu        sync.Mutex
	published []string
	failUntil int
	calls     int
}

func (p *recordingProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failUntil {
		return fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, event.ID)
	return nil
}

func (p *recordingProducer) publishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestEvent(t *testing.T) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceStockLedger)
	ce := factory.CreateTenantEvent(context.Background(), "tenant-1", "stock.movement.recorded", "movement/m-1", map[string]string{"movementId": "m-1"})
	event, err := NewOutboxEventFromCloudEvent("m-1", "StockMovement", "stock.movement.events", ce)
	require.NoError(t, err)
	return event
}

func newTestPublisher(repo Repository, producer EventProducer) *Publisher {
	config := &PublisherConfig{
		PollInterval:    10 * time.Millisecond,
		BatchSize:       10,
		CleanupInterval: time.Hour,
		RetainPublished: time.Hour,
	}
	logger := logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Output:      io.Discard,
	})
	return NewPublisher(repo, producer, config, nil, logger)
}

func TestPublisher_DeliversAndMarksPublished(t *testing.T) {
	repo := &memoryRepository{}
	producer := &recordingProducer{}
	event := newTestEvent(t)
	require.NoError(t, repo.Save(context.Background(), event))

	publisher := newTestPublisher(repo, producer)
	go publisher.Start(context.Background())
	defer publisher.Stop()

	require.Eventually(t, func() bool {
		return producer.publishedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return repo.get(event.ID).IsPublished()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublisher_RetriesAfterBrokerFailure(t *testing.T) {
	repo := &memoryRepository{}
	producer := &recordingProducer{failUntil: 2}
	event := newTestEvent(t)
	require.NoError(t, repo.Save(context.Background(), event))

	publisher := newTestPublisher(repo, producer)
	go publisher.Start(context.Background())
	defer publisher.Stop()

	// The first two polls fail against the broker; the event stays in the
	// outbox with its retry count climbing until delivery succeeds.
	require.Eventually(t, func() bool {
		return repo.get(event.ID).IsPublished()
	}, 2*time.Second, 10*time.Millisecond)

	stored := repo.get(event.ID)
	assert.Equal(t, 2, stored.RetryCount)
	assert.Equal(t, 1, producer.publishedCount())
}

func TestPublisher_StopsRetryingAtMaxRetries(t *testing.T) {
	repo := &memoryRepository{}
	producer := &recordingProducer{failUntil: 1 << 30}
	event := newTestEvent(t)
	event.MaxRetries = 3
	require.NoError(t, repo.Save(context.Background(), event))

	publisher := newTestPublisher(repo, producer)
	go publisher.Start(context.Background())
	defer publisher.Stop()

	require.Eventually(t, func() bool {
		return repo.get(event.ID).RetryCount == 3
	}, 2*time.Second, 10*time.Millisecond)

	// Exhausted events are no longer offered to the broker.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, repo.get(event.ID).RetryCount)
	assert.False(t, repo.get(event.ID).IsPublished())
}

func TestOutboxEvent_CloudEventRoundTrip(t *testing.T) {
	event := newTestEvent(t)

	ce, err := event.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "stock.movement.recorded", ce.Type)
	assert.Equal(t, "tenant-1", ce.TenantID)
	assert.Equal(t, "movement/m-1", ce.Subject)
}
