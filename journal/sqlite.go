package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, shares, entry_time, entry_price, exit_time, exit_price, exit_reason, pnl, commission, hold_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Shares,
		t.EntryTime, t.EntryPrice.String(),
		t.ExitTime, t.ExitPrice.String(),
		t.ExitReason, t.PnL.String(), t.Commission.String(), t.HoldMins,
	)
	return err
}

// GetTrade looks up a single trade by id.
func (j *SQLiteJournal) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT trade_id, symbol, shares, entry_time, entry_price, exit_time, exit_price, exit_reason, pnl, commission, hold_minutes
		FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
	}
	return rec, err
}

// ListTradesClosedBetween returns trades with exit_time in [start, end),
// ordered by exit time.
func (j *SQLiteJournal) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, shares, entry_time, entry_price, exit_time, exit_price, exit_reason, pnl, commission, hold_minutes
		FROM trades WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time, trade_id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	var entryPrice, exitPrice, pnl, commission string

	err := s.Scan(&rec.TradeID, &rec.Symbol, &rec.Shares,
		&rec.EntryTime, &entryPrice, &rec.ExitTime, &exitPrice,
		&rec.ExitReason, &pnl, &commission, &rec.HoldMins)
	if err != nil {
		return TradeRecord{}, err
	}

	for _, f := range []struct {
		s   string
		dst *decimal.Decimal
	}{
		{entryPrice, &rec.EntryPrice},
		{exitPrice, &rec.ExitPrice},
		{pnl, &rec.PnL},
		{commission, &rec.Commission},
	} {
		d, err := decimal.NewFromString(f.s)
		if err != nil {
			return TradeRecord{}, fmt.Errorf("corrupt money column %q: %w", f.s, err)
		}
		*f.dst = d
	}
	return rec, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
