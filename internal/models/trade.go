package models

import (
	"github.com/shopspring/decimal"
)

// Trade actions. Pledge records collateral movement and moves no cash.
const (
	ActionBuy    = "Buy"
	ActionSell   = "Sell"
	ActionPledge = "Pledge"
)

// TradeRecord is one row of the append-only trade log. Price and
// Quantity are optional; TotalAmount is always filled in.
type TradeRecord struct {
	Date        string          `json:"date"`
	Symbol      string          `json:"symbol"`
	Action      string          `json:"action"`
	Price       decimal.Decimal `json:"price,omitempty"`
	Quantity    decimal.Decimal `json:"quantity,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Note        string          `json:"note,omitempty"`
}

// TradeEvent represents a Kafka message for a single executed trade.
type TradeEvent struct {
	EventType string      `json:"event_type"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Data      TradeRecord `json:"data"`
}
