package db

import "time"

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade statuses. A BUY opens a position and stays OPEN until the matching
// SELL flips it to CLOSED; SELL rows are written CLOSED from the start.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Log levels for the audit trail.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelSuccess = "SUCCESS"
)

// Trade represents one executed order in the ledger.
type Trade struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"timestamp"`
}

// LogEntry is one row of the write-only audit trail.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}
