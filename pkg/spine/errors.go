package spine

import "fmt"

// StorageError represents an I/O failure reading or writing the ledger.
// Fatal to the calling operation; callers do not recover it locally.
type StorageError struct {
	Op   string // open, write, sync, read, mkdir, marshal
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("spine storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MalformedRecordError reports a ledger line that could not be parsed as a
// valid tagged event. Readers skip the line and surface the warning; the rest
// of the log stays readable.
type MalformedRecordError struct {
	Line  int
	Cause error
}

func (e MalformedRecordError) Error() string {
	return fmt.Sprintf("spine: malformed record at line %d: %v", e.Line, e.Cause)
}

func (e MalformedRecordError) Unwrap() error { return e.Cause }
