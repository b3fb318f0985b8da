package ledgerindex

// SchemaDDL defines the SQLite schema for the ledger offset index.
// Tables: event_offsets (one row per indexed ledger line), index_state
// (high-water mark of indexed bytes). Execute with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- One row per successfully parsed ledger line
CREATE TABLE IF NOT EXISTS event_offsets (
    decision_id TEXT NOT NULL,
    event_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    offset INTEGER NOT NULL,
    length INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_offsets_decision
    ON event_offsets(decision_id);

-- Single-row high-water mark: how many ledger bytes have been indexed
CREATE TABLE IF NOT EXISTS index_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    bytes_indexed INTEGER NOT NULL
);
`
