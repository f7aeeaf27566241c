package store

import (
	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/models"
)

// Table names shared by every backend.
const (
	TableRules     = "rules"
	TablePositions = "positions"
	TableTrades    = "trade_log"
	TableCapital   = "capital_log"
)

// Store is the table persistence contract. Each table is a value: load
// returns the whole table (seeded defaults when it does not exist yet)
// and save replaces it wholesale. There is no row-level update API by
// design; an edit produces a new table and last write wins.
type Store interface {
	LoadRules() ([]models.Rule, error)
	SaveRules(rules []models.Rule) error

	LoadPositions() ([]models.Position, error)
	SavePositions(positions []models.Position) error

	LoadTrades() ([]models.TradeRecord, error)
	SaveTrades(trades []models.TradeRecord) error
	AppendTrade(trade models.TradeRecord) error

	LoadCapital() ([]models.CapitalRecord, error)
	SaveCapital(records []models.CapitalRecord) error

	Ping() error
	Close() error
}

// DefaultRules seeds the rule table on first load.
func DefaultRules() []models.Rule {
	return []models.Rule{
		{Threshold: 30, Action: "deploy 20% into QQQ / 00938"},
		{Threshold: 40, Action: "deploy 40% into 009815 / 0052"},
		{Threshold: 60, Action: "move 50% into QLD / 00663L"},
	}
}

// DefaultPositions seeds the portfolio table on first load.
func DefaultPositions() []models.Position {
	return []models.Position{
		{Symbol: "009814.TW", Quantity: decimal.Zero},
		{Symbol: "0052.TW", Quantity: decimal.Zero},
	}
}
