package journal

// Decimal columns are TEXT: round-tripping through REAL would reintroduce
// the float error the ledger exists to avoid.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	event_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	side TEXT NOT NULL,
	price TEXT NOT NULL,
	units TEXT NOT NULL,
	class TEXT NOT NULL,
	reason TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	profit TEXT NOT NULL,
	PRIMARY KEY (run_id, event_id)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	units TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	fees_paid TEXT NOT NULL,
	margin TEXT NOT NULL,
	mark_price TEXT NOT NULL,
	profit_defined INTEGER NOT NULL,
	profit TEXT NOT NULL,
	cumulative_profit TEXT NOT NULL,
	liquidation_price TEXT NOT NULL,
	break_even_price TEXT NOT NULL,
	balance TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, time);
CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, time);
`
