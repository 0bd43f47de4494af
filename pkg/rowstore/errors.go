package rowstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no row carries the requested key.
	ErrNotFound = errors.New("rowstore: record not found")
	// ErrSheetNotFound is returned by backends when the named sheet does not exist.
	ErrSheetNotFound = errors.New("rowstore: sheet not found")
	// ErrDuplicateKey is returned when an append would reuse an existing key.
	ErrDuplicateKey = errors.New("rowstore: duplicate key")
	// ErrConflict is returned when an If-Match etag no longer matches the stored row.
	ErrConflict = errors.New("rowstore: row changed since it was read")
	// ErrLockTimeout is returned when the per-sheet mutation lock cannot be acquired in time.
	ErrLockTimeout = errors.New("rowstore: timed out waiting for sheet lock")
	// ErrNoKeyColumn is returned by key operations on a sheet without a key column.
	ErrNoKeyColumn = errors.New("rowstore: sheet has no key column")
)

// ErrMalformedRow matches every MalformedRowError.
var ErrMalformedRow = errors.New("rowstore: malformed row")

// MalformedRowError reports a row whose cells the codec could not decode,
// usually a hand edited cell.
type MalformedRowError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("rowstore: %s row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

func (e *MalformedRowError) Is(target error) bool { return target == ErrMalformedRow }
