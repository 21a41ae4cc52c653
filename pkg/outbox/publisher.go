package outbox

import (
	"context"
	"time"

	"github.com/warehousekit/stock-ledger/pkg/cloudevents"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/metrics"
)

// EventProducer publishes CloudEvents to a topic. Satisfied by the Kafka
// producer stack.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error
}

// PublisherConfig holds configuration for the outbox publisher
type PublisherConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	CleanupInterval time.Duration
	RetainPublished time.Duration
}

// DefaultPublisherConfig returns sensible defaults
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		PollInterval:    time.Second,
		BatchSize:       100,
		CleanupInterval: time.Hour,
		RetainPublished: 24 * time.Hour,
	}
}

// Publisher polls the outbox and relays unpublished events to the broker.
// Delivery is at-least-once: an event is only marked published after the
// broker acknowledges it.
type Publisher struct {
	repository Repository
	producer   EventProducer
	config     *PublisherConfig
	metrics    *metrics.Metrics
	logger     *logging.Logger
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

// NewPublisher creates a new outbox publisher
func NewPublisher(repository Repository, producer EventProducer, config *PublisherConfig, m *metrics.Metrics, logger *logging.Logger) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	return &Publisher{
		repository: repository,
		producer:   producer,
		config:     config,
		metrics:    m,
		logger:     logger,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Start begins polling the outbox. It blocks until Stop is called or the
// context is cancelled, so run it in its own goroutine.
func (p *Publisher) Start(ctx context.Context) {
	defer close(p.stoppedCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.logger.Info("outbox publisher started",
		"poll_interval", p.config.PollInterval.String(),
		"batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-pollTicker.C:
			p.publishBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanup(ctx)
		}
	}
}

// Stop signals the publisher to stop and waits for the poll loop to exit.
func (p *Publisher) Stop() {
	close(p.stopCh)
	<-p.stoppedCh
}

func (p *Publisher) publishBatch(ctx context.Context) {
	events, err := p.repository.FindUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.WithError(err).Error("failed to fetch unpublished outbox events")
		return
	}

	if p.metrics != nil {
		p.metrics.SetOutboxPending(len(events))
	}
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		p.publishOne(ctx, event)
	}
}

func (p *Publisher) publishOne(ctx context.Context, event *OutboxEvent) {
	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		p.logger.WithError(err).Error("outbox event payload is not a valid CloudEvent",
			"event_id", event.ID)
		p.fail(ctx, event, err)
		return
	}

	if err := p.producer.PublishEvent(ctx, event.Topic, cloudEvent); err != nil {
		p.logger.WithError(err).Warn("failed to publish outbox event",
			"event_id", event.ID,
			"topic", event.Topic,
			"retry_count", event.RetryCount)
		p.fail(ctx, event, err)
		return
	}

	if err := p.repository.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
		// Already delivered; the next poll retries the mark. Consumers
		// must tolerate duplicates.
		p.logger.WithError(err).Error("failed to mark outbox event published",
			"event_id", event.ID)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordOutboxPublish(event.Topic, true)
	}
}

func (p *Publisher) fail(ctx context.Context, event *OutboxEvent, cause error) {
	if p.metrics != nil {
		p.metrics.RecordOutboxPublish(event.Topic, false)
		p.metrics.RecordOutboxRetry()
	}
	if err := p.repository.IncrementRetry(ctx, event.ID, cause.Error()); err != nil {
		p.logger.WithError(err).Error("failed to increment outbox retry count",
			"event_id", event.ID)
	}
}

func (p *Publisher) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.config.RetainPublished)
	deleted, err := p.repository.DeletePublished(ctx, cutoff)
	if err != nil {
		p.logger.WithError(err).Error("failed to clean up published outbox events")
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up published outbox events", "deleted", deleted)
	}
}
