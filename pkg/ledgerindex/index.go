// Package ledgerindex maintains an incremental secondary index over the spine
// ledger: decision_id -> byte offsets of that decision's lines. The index is
// derived state in SQLite; the JSONL ledger remains the only source of truth
// and the append-only contract is untouched. Queries that need one decision
// can read just its lines instead of scanning the whole log.
package ledgerindex

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite" // SQLite driver

	"spine/pkg/event"
	"spine/pkg/spine"
)

// Index is the SQLite-backed offset index for one store.
type Index struct {
	db    *sql.DB
	store *spine.Store
}

// Open opens (or creates) the index database at path and applies the schema.
// WAL mode and a busy timeout keep concurrent readers from blocking updates.
func Open(path string, store *spine.Store) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Index{db: db, store: store}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

// Update indexes ledger bytes appended since the last run and returns the
// number of lines indexed. A trailing line without a newline is an append in
// flight and is left for the next run. If the ledger is shorter than the
// high-water mark the index is rebuilt from scratch.
func (ix *Index) Update(ctx context.Context) (int, error) {
	mark, err := ix.bytesIndexed(ctx)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(ix.store.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat ledger: %w", err)
	}
	if info.Size() < mark {
		// Ledger replaced out from under us; start over.
		if err := ix.reset(ctx); err != nil {
			return 0, err
		}
		mark = 0
	}
	if info.Size() == mark {
		return 0, nil
	}

	if _, err := f.Seek(mark, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek ledger: %w", err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	added := 0
	offset := mark
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			// Partial trailing line: not yet durable as a record.
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read ledger: %w", err)
		}

		length := int64(len(line))
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			var e event.Event
			// Malformed lines advance the mark without an index row; the
			// full-scan reader owns warning about them.
			if jsonErr := json.Unmarshal(trimmed, &e); jsonErr == nil {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO event_offsets (decision_id, event_id, event_type, offset, length) VALUES (?, ?, ?, ?, ?)`,
					e.DecisionID, e.EventID, string(e.Type), offset, length,
				); err != nil {
					return 0, fmt.Errorf("insert offset: %w", err)
				}
				added++
			}
		}
		offset += length
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_state (id, bytes_indexed) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET bytes_indexed = excluded.bytes_indexed`,
		offset,
	); err != nil {
		return 0, fmt.Errorf("update high-water mark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// ReadDecision returns decisionID's events in append order by reading only
// the indexed byte spans. Callers should Update first; a stale index simply
// returns fewer events, never wrong ones.
func (ix *Index) ReadDecision(ctx context.Context, decisionID string) ([]event.Event, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT offset, length FROM event_offsets WHERE decision_id = ? ORDER BY offset`,
		decisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query offsets: %w", err)
	}
	defer rows.Close()

	type span struct{ offset, length int64 }
	var spans []span
	for rows.Next() {
		var s span
		if err := rows.Scan(&s.offset, &s.length); err != nil {
			return nil, fmt.Errorf("scan offset: %w", err)
		}
		spans = append(spans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offsets: %w", err)
	}
	if len(spans) == 0 {
		return nil, nil
	}

	f, err := os.Open(ix.store.Path())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	events := make([]event.Event, 0, len(spans))
	for _, s := range spans {
		buf := make([]byte, s.length)
		if _, err := f.ReadAt(buf, s.offset); err != nil {
			return nil, fmt.Errorf("read span at %d: %w", s.offset, err)
		}
		var e event.Event
		if err := json.Unmarshal(bytes.TrimSpace(buf), &e); err != nil {
			return nil, fmt.Errorf("decode span at %d: %w", s.offset, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Stats returns the number of indexed lines and the byte high-water mark.
func (ix *Index) Stats(ctx context.Context) (lines int64, bytesIndexed int64, err error) {
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_offsets`).Scan(&lines); err != nil {
		return 0, 0, fmt.Errorf("count offsets: %w", err)
	}
	bytesIndexed, err = ix.bytesIndexed(ctx)
	if err != nil {
		return 0, 0, err
	}
	return lines, bytesIndexed, nil
}

func (ix *Index) bytesIndexed(ctx context.Context) (int64, error) {
	var mark int64
	err := ix.db.QueryRowContext(ctx, `SELECT bytes_indexed FROM index_state WHERE id = 1`).Scan(&mark)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read high-water mark: %w", err)
	}
	return mark, nil
}

func (ix *Index) reset(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM event_offsets`); err != nil {
		return fmt.Errorf("reset offsets: %w", err)
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM index_state`); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
