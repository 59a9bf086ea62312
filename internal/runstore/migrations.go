package runstore

// schema creates the run-history tables. Kept idempotent so opening an
// existing database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS item_runs (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	item_id       TEXT NOT NULL,
	feature_name  TEXT NOT NULL,
	order_path    TEXT,
	status        TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP,
	tokens_input  INTEGER NOT NULL DEFAULT 0,
	tokens_output INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_item_runs_run_id ON item_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_item_runs_status ON item_runs(status);
`
