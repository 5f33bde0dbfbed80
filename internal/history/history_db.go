// Package history stores daily closing prices and serves them to the
// simulation engines. It is the only price source the engines ever see; the
// network clients write into it, the engines read from it.
package history

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// DailyPrice is one daily closing-price observation.
type DailyPrice struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// DB provides access to the daily_prices table.
type DB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDB creates a history database accessor.
func NewDB(db *sql.DB, log zerolog.Logger) *DB {
	return &DB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// EnsureSchema creates the daily_prices table if it does not exist.
func (h *DB) EnsureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			close  REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol_date
			ON daily_prices (symbol, date DESC);
	`
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create daily_prices schema: %w", err)
	}
	return nil
}

// GetDailyPrices fetches up to `limit` most recent daily prices for a symbol,
// newest first. A limit of 0 fetches the full history.
func (h *DB) GetDailyPrices(symbol string, limit int) ([]DailyPrice, error) {
	query := `
		SELECT date, close
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
	`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// UpsertDailyPrices stores a batch of daily prices for a symbol, replacing any
// existing rows for the same dates.
func (h *DB) UpsertDailyPrices(symbol string, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.Exec(symbol, p.Date, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price %s %s: %w", symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price upsert: %w", err)
	}

	h.log.Debug().
		Str("symbol", symbol).
		Int("rows", len(prices)).
		Msg("Stored daily prices")

	return nil
}
