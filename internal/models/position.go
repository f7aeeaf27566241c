package models

import (
	"github.com/shopspring/decimal"
)

// Position represents one holding in the pledged portfolio.
// Quantity is never negative; zero-quantity rows are kept in the table
// but contribute nothing to valuation.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PositionsEvent represents a Kafka message carrying a full portfolio
// snapshot from the broker exporter.
type PositionsEvent struct {
	EventType string             `json:"event_type"`
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Data      PositionsEventData `json:"data"`
}

// PositionsEventData contains the snapshot positions.
type PositionsEventData struct {
	Positions  []PositionData `json:"positions"`
	TotalCount int            `json:"total_count,omitempty"`
}

// PositionData represents a single position in a snapshot event.
// Numeric fields arrive as strings, matching the exporter's payload.
type PositionData struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
}
