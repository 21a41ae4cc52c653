package cloudevents

import (
	"time"
)

// EventType constants for stock ledger events
const (
	StockMovementRecorded = "stock.movement.recorded"
	StockLevelLow         = "stock.level.low"
)

// Source constant for events emitted by this service
const (
	SourceStockLedger = "/warehousekit/stock-ledger"
)

// CloudEvent represents a CloudEvents v1.0 compliant event envelope.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Extension attributes carried on every stock event
	TenantID      string `json:"tenantid,omitempty"`
	CorrelationID string `json:"correlationid,omitempty"`
}
