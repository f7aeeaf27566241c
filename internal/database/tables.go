package database

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/metrics"
	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/store"
)

// Every table here is replaced wholesale on save: delete-and-insert in
// one transaction, row order preserved by insertion order (loads order
// by id). An empty table loads as its seeded defaults so a fresh
// database behaves like a fresh spreadsheet.

// replaceTable deletes every row of a table and re-inserts via insert,
// all in one transaction.
func (db *DB) replaceTable(table string, count int, insert func(tx *sql.Tx, i int) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", table, err)
	}

	for i := 0; i < count; i++ {
		if err := insert(tx, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s replacement: %w", table, err)
	}

	metrics.TableSaves.WithLabelValues(table).Inc()
	return nil
}

// Rules

// LoadRules returns the rule table in saved order; an empty table
// yields the seeded defaults.
func (db *DB) LoadRules() ([]models.Rule, error) {
	rows, err := db.conn.Query(`SELECT threshold, action FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.Threshold, &r.Action); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	if len(rules) == 0 {
		return store.DefaultRules(), nil
	}
	return rules, nil
}

// SaveRules replaces the rule table.
func (db *DB) SaveRules(rules []models.Rule) error {
	return db.replaceTable(store.TableRules, len(rules), func(tx *sql.Tx, i int) error {
		_, err := tx.Exec(`INSERT INTO rules (threshold, action) VALUES ($1, $2)`,
			rules[i].Threshold, rules[i].Action)
		if err != nil {
			return fmt.Errorf("failed to insert rule %d: %w", i, err)
		}
		return nil
	})
}

// Positions

// LoadPositions returns the portfolio; an empty table yields the
// seeded defaults.
func (db *DB) LoadPositions() ([]models.Position, error) {
	rows, err := db.conn.Query(`SELECT symbol, quantity FROM positions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var quantity sql.NullString
		if err := rows.Scan(&p.Symbol, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if quantity.Valid {
			p.Quantity, _ = decimal.NewFromString(quantity.String)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	if len(positions) == 0 {
		return store.DefaultPositions(), nil
	}
	return positions, nil
}

// SavePositions replaces the portfolio table.
func (db *DB) SavePositions(positions []models.Position) error {
	return db.replaceTable(store.TablePositions, len(positions), func(tx *sql.Tx, i int) error {
		_, err := tx.Exec(`INSERT INTO positions (symbol, quantity) VALUES ($1, $2)`,
			positions[i].Symbol, positions[i].Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", positions[i].Symbol, err)
		}
		return nil
	})
}

// ReplacePositions is the snapshot-consumer entry point; same replace
// semantics as SavePositions.
func (db *DB) ReplacePositions(positions []models.Position) error {
	return db.SavePositions(positions)
}

// Trades

const tradeColumns = `trade_date, symbol, action, price, quantity, total_amount, note`

// LoadTrades returns the full trade log in insertion order.
func (db *DB) LoadTrades() ([]models.TradeRecord, error) {
	rows, err := db.conn.Query(`SELECT ` + tradeColumns + ` FROM trade_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var price, quantity, note sql.NullString
		if err := rows.Scan(&t.Date, &t.Symbol, &t.Action, &price, &quantity, &t.TotalAmount, &note); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if price.Valid {
			t.Price, _ = decimal.NewFromString(price.String)
		}
		if quantity.Valid {
			t.Quantity, _ = decimal.NewFromString(quantity.String)
		}
		if note.Valid {
			t.Note = note.String
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	return trades, nil
}

// SaveTrades replaces the trade log with an edited copy.
func (db *DB) SaveTrades(trades []models.TradeRecord) error {
	return db.replaceTable(store.TableTrades, len(trades), func(tx *sql.Tx, i int) error {
		return insertTrade(tx.Exec, trades[i])
	})
}

// AppendTrade adds one record to the trade log.
func (db *DB) AppendTrade(trade models.TradeRecord) error {
	return insertTrade(db.conn.Exec, trade)
}

type execFunc func(query string, args ...interface{}) (sql.Result, error)

func insertTrade(exec execFunc, t models.TradeRecord) error {
	var price, quantity interface{}
	if !t.Price.IsZero() {
		price = t.Price
	}
	if !t.Quantity.IsZero() {
		quantity = t.Quantity
	}

	_, err := exec(`
		INSERT INTO trade_log (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.Date, t.Symbol, t.Action, price, quantity, t.TotalAmount, t.Note)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s %s: %w", t.Action, t.Symbol, err)
	}
	return nil
}

// Capital

// LoadCapital returns the capital log in insertion order.
func (db *DB) LoadCapital() ([]models.CapitalRecord, error) {
	rows, err := db.conn.Query(`SELECT entry_date, entry_type, amount, note FROM capital_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get capital log: %w", err)
	}
	defer rows.Close()

	var records []models.CapitalRecord
	for rows.Next() {
		var r models.CapitalRecord
		var note sql.NullString
		if err := rows.Scan(&r.Date, &r.Type, &r.Amount, &note); err != nil {
			return nil, fmt.Errorf("failed to scan capital record: %w", err)
		}
		if note.Valid {
			r.Note = note.String
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capital log: %w", err)
	}

	return records, nil
}

// SaveCapital replaces the capital log.
func (db *DB) SaveCapital(records []models.CapitalRecord) error {
	return db.replaceTable(store.TableCapital, len(records), func(tx *sql.Tx, i int) error {
		r := records[i]
		_, err := tx.Exec(`
			INSERT INTO capital_log (entry_date, entry_type, amount, note)
			VALUES ($1, $2, $3, $4)
		`, r.Date, r.Type, r.Amount, r.Note)
		if err != nil {
			return fmt.Errorf("failed to insert capital record %d: %w", i, err)
		}
		return nil
	})
}
