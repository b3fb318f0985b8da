// Package spine implements the append-only decision ledger: a JSONL file of
// typed events that is the system of record. Producers append through Store
// (or the higher-level Emitter); every other component is a reader that
// replays the log.
package spine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"spine/pkg/event"
)

// LogName is the ledger file name inside the spine directory.
const LogName = "spine.jsonl"

// maxLineBytes bounds a single ledger record. Payloads are small maps and
// strings; 1 MiB leaves generous headroom. Append rejects records over the
// limit so everything it accepts stays readable; lines over the limit written
// by other tools are skipped with a warning on replay.
const maxLineBytes = 1 << 20

// Store is the durable, append-only event store. One JSON record per line,
// newline-terminated, written in a single Write call so a crash mid-write can
// never be parsed as a different valid record. Appends from concurrent
// goroutines are serialized by an internal mutex; appends from concurrent
// processes rely on O_APPEND atomicity for single short writes.
type Store struct {
	dir  string
	mu   sync.Mutex
	sync bool
}

// NewStore returns a store rooted at dir. The directory and log file are
// created lazily on first append; a missing file is not an error for readers.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// WithSync makes Append fsync the log file before returning. Slower, but the
// record survives an OS crash rather than only a process crash.
func (s *Store) WithSync() *Store {
	s.sync = true
	return s
}

// Dir returns the spine directory the store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Path returns the full path of the ledger file.
func (s *Store) Path() string { return filepath.Join(s.dir, LogName) }

// Append validates e, persists it as one line, and returns its event id.
// The record is visible to any subsequent ReadAll once Append returns.
func (s *Store) Append(e event.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return "", &StorageError{Op: "marshal", Path: s.Path(), Err: err}
	}
	line = append(line, '\n')
	if len(line) > maxLineBytes {
		return "", &StorageError{
			Op:   "append",
			Path: s.Path(),
			Err:  fmt.Errorf("record is %d bytes, limit %d", len(line), maxLineBytes),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &StorageError{Op: "mkdir", Path: s.dir, Err: err}
	}

	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", &StorageError{Op: "open", Path: s.Path(), Err: err}
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return "", &StorageError{Op: "write", Path: s.Path(), Err: err}
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			return "", &StorageError{Op: "sync", Path: s.Path(), Err: err}
		}
	}
	return e.EventID, nil
}

// ReadAll replays the ledger in append order. A missing file yields an empty
// slice and no error (first run). Lines that cannot be parsed as a valid
// tagged event, or that exceed the record size limit, are skipped and
// reported as warnings; they never abort the read. Only a storage-level
// failure returns a non-nil error.
func (s *Store) ReadAll() ([]event.Event, []MalformedRecordError, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, &StorageError{Op: "open", Path: s.Path(), Err: err}
	}
	defer f.Close()

	var (
		events   []event.Event
		warnings []MalformedRecordError
	)

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			switch trimmed := bytes.TrimSpace(line); {
			case len(trimmed) == 0:
			case len(line) > maxLineBytes:
				warnings = append(warnings, MalformedRecordError{
					Line:  lineNo,
					Cause: fmt.Errorf("record is %d bytes, limit %d", len(line), maxLineBytes),
				})
			default:
				var e event.Event
				if err := json.Unmarshal(trimmed, &e); err != nil {
					warnings = append(warnings, MalformedRecordError{Line: lineNo, Cause: err})
					break
				}
				events = append(events, e)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, &StorageError{Op: "read", Path: s.Path(), Err: readErr}
		}
	}
	return events, warnings, nil
}
