package models

import (
	"github.com/shopspring/decimal"
)

// CapitalRecord is one row of the capital log. The sum of Amount over
// all rows is the cumulative principal contributed.
type CapitalRecord struct {
	Date   string          `json:"date"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}
