package journal

// Prices and money are stored as TEXT: the engine's decimals round-trip
// exactly, which REAL columns would not guarantee.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	shares INTEGER NOT NULL,
	entry_time DATETIME NOT NULL,
	entry_price TEXT NOT NULL,
	exit_time DATETIME NOT NULL,
	exit_price TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	pnl TEXT NOT NULL,
	commission TEXT NOT NULL,
	hold_minutes INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`
