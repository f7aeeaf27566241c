package store

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/metrics"
	"github.com/khliao/invest-command/internal/models"
)

// CSVStore persists each table as one flat CSV file under dir. A
// missing file yields the table's seeded defaults, which are written
// out immediately so the next load finds them. Saves replace the file
// atomically via a temp file and rename.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore creates the directory if needed and returns the store.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}
	return &CSVStore{dir: dir}, nil
}

// Ping checks that the data directory is still accessible.
func (s *CSVStore) Ping() error {
	_, err := os.Stat(s.dir)
	return err
}

// Close is a no-op; files are closed per operation.
func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// readTable loads all data rows (header stripped) from a table file.
// ok is false when the file does not exist.
func (s *CSVStore) readTable(table string, wantCols int) (rows [][]string, ok bool, err error) {
	f, err := os.Open(s.path(table))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open table %s: %w", table, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = wantCols
	all, err := r.ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	if len(all) <= 1 {
		return nil, true, nil
	}
	return all[1:], true, nil
}

// writeTable atomically replaces a table file with header + rows.
func (s *CSVStore) writeTable(table string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, table+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", table, err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write header for %s: %w", table, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write rows for %s: %w", table, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush table %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", table, err)
	}

	if err := os.Rename(tmpName, s.path(table)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace table %s: %w", table, err)
	}

	metrics.TableSaves.WithLabelValues(table).Inc()
	return nil
}

// Rules

var rulesHeader = []string{"threshold", "action"}

// LoadRules returns the rule table, seeding defaults on first access.
func (s *CSVStore) LoadRules() ([]models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok, err := s.readTable(TableRules, len(rulesHeader))
	if err != nil {
		return nil, err
	}
	if !ok {
		defaults := DefaultRules()
		log.Printf("Table %s missing, seeding %d default rows", TableRules, len(defaults))
		if err := s.writeTable(TableRules, rulesHeader, rulesToRows(defaults)); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	// An emptied table reads as the defaults too, same as the Postgres
	// backend; only a missing file triggers the seed write.
	if len(rows) == 0 {
		return DefaultRules(), nil
	}

	rules := make([]models.Rule, 0, len(rows))
	for _, row := range rows {
		threshold, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q in %s: %w", row[0], TableRules, err)
		}
		rules = append(rules, models.Rule{Threshold: threshold, Action: row[1]})
	}
	return rules, nil
}

// SaveRules replaces the rule table.
func (s *CSVStore) SaveRules(rules []models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeTable(TableRules, rulesHeader, rulesToRows(rules))
}

func rulesToRows(rules []models.Rule) [][]string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			strconv.FormatFloat(r.Threshold, 'f', -1, 64),
			r.Action,
		})
	}
	return rows
}

// Positions

var positionsHeader = []string{"symbol", "quantity"}

// LoadPositions returns the portfolio table, seeding defaults on first
// access.
func (s *CSVStore) LoadPositions() ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok, err := s.readTable(TablePositions, len(positionsHeader))
	if err != nil {
		return nil, err
	}
	if !ok {
		defaults := DefaultPositions()
		log.Printf("Table %s missing, seeding %d default rows", TablePositions, len(defaults))
		if err := s.writeTable(TablePositions, positionsHeader, positionsToRows(defaults)); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if len(rows) == 0 {
		return DefaultPositions(), nil
	}

	positions := make([]models.Position, 0, len(rows))
	for _, row := range rows {
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q in %s: %w", row[1], TablePositions, err)
		}
		positions = append(positions, models.Position{Symbol: row[0], Quantity: qty})
	}
	return positions, nil
}

// SavePositions replaces the portfolio table.
func (s *CSVStore) SavePositions(positions []models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeTable(TablePositions, positionsHeader, positionsToRows(positions))
}

func positionsToRows(positions []models.Position) [][]string {
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, []string{p.Symbol, p.Quantity.String()})
	}
	return rows
}

// Trades

var tradesHeader = []string{"date", "symbol", "action", "price", "quantity", "total_amount", "note"}

// LoadTrades returns the trade log; missing file means an empty log.
func (s *CSVStore) LoadTrades() ([]models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTradesLocked()
}

func (s *CSVStore) loadTradesLocked() ([]models.TradeRecord, error) {
	rows, ok, err := s.readTable(TableTrades, len(tradesHeader))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	trades := make([]models.TradeRecord, 0, len(rows))
	for _, row := range rows {
		trade := models.TradeRecord{
			Date:   row[0],
			Symbol: row[1],
			Action: row[2],
			Note:   row[6],
		}
		if row[3] != "" {
			if trade.Price, err = decimal.NewFromString(row[3]); err != nil {
				return nil, fmt.Errorf("invalid price %q in %s: %w", row[3], TableTrades, err)
			}
		}
		if row[4] != "" {
			if trade.Quantity, err = decimal.NewFromString(row[4]); err != nil {
				return nil, fmt.Errorf("invalid quantity %q in %s: %w", row[4], TableTrades, err)
			}
		}
		if trade.TotalAmount, err = decimal.NewFromString(row[5]); err != nil {
			return nil, fmt.Errorf("invalid total_amount %q in %s: %w", row[5], TableTrades, err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// SaveTrades replaces the trade log.
func (s *CSVStore) SaveTrades(trades []models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeTable(TableTrades, tradesHeader, tradesToRows(trades))
}

// AppendTrade adds one record to the end of the trade log.
func (s *CSVStore) AppendTrade(trade models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTradesLocked()
	if err != nil {
		return err
	}
	trades = append(trades, trade)
	return s.writeTable(TableTrades, tradesHeader, tradesToRows(trades))
}

func tradesToRows(trades []models.TradeRecord) [][]string {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		price, qty := "", ""
		if !t.Price.IsZero() {
			price = t.Price.String()
		}
		if !t.Quantity.IsZero() {
			qty = t.Quantity.String()
		}
		rows = append(rows, []string{t.Date, t.Symbol, t.Action, price, qty, t.TotalAmount.String(), t.Note})
	}
	return rows
}

// Capital

var capitalHeader = []string{"date", "type", "amount", "note"}

// LoadCapital returns the capital log; missing file means no
// contributions yet.
func (s *CSVStore) LoadCapital() ([]models.CapitalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok, err := s.readTable(TableCapital, len(capitalHeader))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	records := make([]models.CapitalRecord, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q in %s: %w", row[2], TableCapital, err)
		}
		records = append(records, models.CapitalRecord{Date: row[0], Type: row[1], Amount: amount, Note: row[3]})
	}
	return records, nil
}

// SaveCapital replaces the capital log.
func (s *CSVStore) SaveCapital(records []models.CapitalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Date, r.Type, r.Amount.String(), r.Note})
	}
	return s.writeTable(TableCapital, capitalHeader, rows)
}
