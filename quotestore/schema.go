package quotestore

const Schema = `
CREATE TABLE IF NOT EXISTS market_data (
	asset_id TEXT PRIMARY KEY,
	spot REAL NOT NULL,
	volatility REAL NOT NULL,
	risk_free_rate REAL NOT NULL,
	dividend_yield REAL NOT NULL DEFAULT 0.0,
	last_updated DATETIME NOT NULL,
	source TEXT NOT NULL DEFAULT 'provider'
);
`
