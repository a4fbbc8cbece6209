package db

import (
	"context"
	"database/sql"
	"fmt"
)

// LatestOpenBuy returns the most recent OPEN BUY trade for a symbol, or nil
// when the symbol is flat. The loop recovers its position from this row on
// every evaluation, so there is no in-memory position cache to drift.
func (d *Database) LatestOpenBuy(ctx context.Context, symbol string) (*Trade, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, symbol, side, price, quantity, status, created_at
		FROM trades
		WHERE symbol = ? AND side = ? AND status = ?
		ORDER BY id DESC LIMIT 1
	`, symbol, SideBuy, StatusOpen)

	var t Trade
	if err := row.Scan(&t.ID, &t.Symbol, &t.Side, &t.Price, &t.Quantity, &t.Status, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// RecordBuy appends an OPEN BUY trade and returns its assigned id. At most
// one OPEN buy may exist per symbol; a second one is rejected here so the
// invariant holds at the store level, not just in the loop's decision.
func (d *Database) RecordBuy(ctx context.Context, t Trade) (int64, error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record buy: begin: %w", err)
	}
	defer tx.Rollback()

	var open int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trades WHERE symbol = ? AND side = ? AND status = ?
	`, t.Symbol, SideBuy, StatusOpen).Scan(&open); err != nil {
		return 0, fmt.Errorf("record buy: %w", err)
	}
	if open > 0 {
		return 0, fmt.Errorf("record buy: %s already has an open position", t.Symbol)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trades (symbol, side, price, quantity, status)
		VALUES (?, ?, ?, ?, ?)
	`, t.Symbol, SideBuy, t.Price, t.Quantity, StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("record buy: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// RecordSell closes the open buy identified by closesID and appends the
// CLOSED SELL row in a single transaction. Either both writes land or
// neither does; closing an already-closed trade rolls back with an error,
// which is what keeps at most one OPEN buy per symbol.
func (d *Database) RecordSell(ctx context.Context, sell Trade, closesID int64) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record sell: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE trades SET status = ? WHERE id = ? AND status = ?
	`, StatusClosed, closesID, StatusOpen)
	if err != nil {
		return fmt.Errorf("record sell: close trade %d: %w", closesID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("record sell: trade %d is not open", closesID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades (symbol, side, price, quantity, status)
		VALUES (?, ?, ?, ?, ?)
	`, sell.Symbol, SideSell, sell.Price, sell.Quantity, StatusClosed); err != nil {
		return fmt.Errorf("record sell: insert: %w", err)
	}

	return tx.Commit()
}

// RecentTrades returns up to limit trades, newest first.
func (d *Database) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, price, quantity, status, created_at
		FROM trades ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Price, &t.Quantity, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountSells returns the number of SELL trades, i.e. completed round-trips.
func (d *Database) CountSells(ctx context.Context) (int, error) {
	var n int
	err := d.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE side = ?`, SideSell).Scan(&n)
	return n, err
}

// InsertLog appends one audit-trail entry.
func (d *Database) InsertLog(ctx context.Context, level, message string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO logs (level, message) VALUES (?, ?)
	`, level, message)
	return err
}

// RecentLogs returns up to limit log entries, newest first.
func (d *Database) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, level, message, created_at
		FROM logs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
