package rowstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultKeyAttempts = 5
	defaultLockWait    = 10 * time.Second
)

// Row is a decoded record together with its position and fingerprint.
type Row[T any] struct {
	Record T
	Row    int
	ETag   string
}

// UpdateOptions tunes UpdateRow.
type UpdateOptions struct {
	// IfMatch, when set, must equal the current row ETag or the update fails with ErrConflict.
	IfMatch string
}

// MalformedRowHandler is told about each row a lenient read skipped.
type MalformedRowHandler func(ctx context.Context, err *MalformedRowError)

type options struct {
	onMalformed MalformedRowHandler
	index       Index
	locker      Locker
	observer    Observer
	newKey      KeyGenerator
	keyAttempts int
	lockWait    time.Duration
}

// Option configures a Table.
type Option func(*options)

func WithIndex(index Index) Option {
	return func(o *options) { o.index = index }
}

func WithLocker(locker Locker) Option {
	return func(o *options) { o.locker = locker }
}

func WithObserver(observer Observer) Option {
	return func(o *options) { o.observer = observer }
}

func WithKeyGenerator(gen KeyGenerator) Option {
	return func(o *options) { o.newKey = gen }
}

// WithMalformedRowHandler makes ReadAll and SetColumn skip rows that fail to
// decode, reporting each to handler. Without it those reads fail with a
// MalformedRowError.
func WithMalformedRowHandler(handler MalformedRowHandler) Option {
	return func(o *options) { o.onMalformed = handler }
}

// WithLockWait bounds how long a mutation waits for the sheet lock.
func WithLockWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockWait = d
		}
	}
}

// Table exposes typed record operations over one sheet of a Backend.
type Table[T any] struct {
	backend Backend
	schema  Schema
	codec   Codec[T]
	options
}

func NewTable[T any](backend Backend, schema Schema, codec Codec[T], opts ...Option) (*Table[T], error) {
	if backend == nil {
		return nil, fmt.Errorf("rowstore: backend required")
	}
	if codec == nil {
		return nil, fmt.Errorf("rowstore: codec required")
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	cfg := options{
		index:       NewMemoryIndex(),
		locker:      NewMemoryLocker(),
		observer:    nopObserver{},
		newKey:      NewKey,
		keyAttempts: defaultKeyAttempts,
		lockWait:    defaultLockWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Table[T]{backend: backend, schema: schema, codec: codec, options: cfg}, nil
}

func (t *Table[T]) Schema() Schema {
	return t.schema
}

// Ensure creates the sheet and its header row when missing.
func (t *Table[T]) Ensure(ctx context.Context) (err error) {
	defer t.observe(OpEnsure, time.Now(), &err)
	if err = t.backend.EnsureSheet(ctx, t.schema.Sheet, t.schema.Header); err != nil {
		return t.wrap(OpEnsure, err)
	}
	return nil
}

// ReadAll returns every data row in sheet order. Blank rows are skipped.
func (t *Table[T]) ReadAll(ctx context.Context) (rows []Row[T], err error) {
	defer t.observe(OpReadAll, time.Now(), &err)
	rows, _, err = t.readAllCells(ctx)
	return rows, err
}

// FindByKey returns the 1-based row number of the first row with key.
func (t *Table[T]) FindByKey(ctx context.Context, key string) (row int, err error) {
	defer t.observe(OpFind, time.Now(), &err)
	row, _, err = t.locate(ctx, key)
	return row, err
}

// Get returns the record stored under key.
func (t *Table[T]) Get(ctx context.Context, key string) (out Row[T], err error) {
	defer t.observe(OpFind, time.Now(), &err)
	row, cells, err := t.locate(ctx, key)
	if err != nil {
		return Row[T]{}, err
	}
	return t.decodeRow(row, cells)
}

// Append writes record after the last row. When the sheet is keyed and the key
// cell is blank a fresh unique key is assigned; a supplied key that already
// exists is rejected with ErrDuplicateKey.
func (t *Table[T]) Append(ctx context.Context, record T) (out Row[T], err error) {
	defer t.observe(OpAppend, time.Now(), &err)

	unlock, err := t.lock(ctx)
	if err != nil {
		return Row[T]{}, err
	}
	defer t.release(ctx, unlock)

	cells := pad(t.codec.Encode(record), t.schema.Width())
	key := ""
	if t.schema.Keyed() {
		// only the key column matters here; other rows are never decoded
		grid, err := t.backend.ReadAll(ctx, t.schema.Sheet, t.schema.Width())
		if err != nil {
			return Row[T]{}, t.wrap(OpAppend, err)
		}
		keys := t.keyRows(grid)
		_ = t.index.Replace(ctx, t.schema.Sheet, keys)
		key = cells[t.schema.KeyColumn]
		if key == "" {
			if key, err = t.uniqueKey(keys); err != nil {
				return Row[T]{}, err
			}
			cells[t.schema.KeyColumn] = key
		} else if _, taken := keys[key]; taken {
			return Row[T]{}, fmt.Errorf("%w: %s %q", ErrDuplicateKey, t.schema.Sheet, key)
		}
	}

	row, err := t.backend.AppendRow(ctx, t.schema.Sheet, cells)
	if err != nil {
		return Row[T]{}, t.wrap(OpAppend, err)
	}
	if key != "" {
		_ = t.index.Put(ctx, t.schema.Sheet, key, row)
	}
	return t.decodeRow(row, cells)
}

// AppendCreating behaves like Append, but when the sheet does not exist yet it
// creates the sheet with its header and retries once.
func (t *Table[T]) AppendCreating(ctx context.Context, record T) (Row[T], error) {
	out, err := t.Append(ctx, record)
	if !errors.Is(err, ErrSheetNotFound) {
		return out, err
	}
	if err := t.Ensure(ctx); err != nil {
		return Row[T]{}, err
	}
	return t.Append(ctx, record)
}

// UpdateRow rewrites the row stored under key with the result of mutate.
// Columns mutate leaves alone keep their stored values and the key cell never
// changes.
func (t *Table[T]) UpdateRow(ctx context.Context, key string, mutate func(current T) (T, error), opts UpdateOptions) (out Row[T], err error) {
	defer t.observe(OpUpdate, time.Now(), &err)

	unlock, err := t.lock(ctx)
	if err != nil {
		return Row[T]{}, err
	}
	defer t.release(ctx, unlock)

	row, cells, err := t.locate(ctx, key)
	if err != nil {
		return Row[T]{}, err
	}
	if opts.IfMatch != "" && opts.IfMatch != ETag(cells) {
		return Row[T]{}, fmt.Errorf("%w: %s %q", ErrConflict, t.schema.Sheet, key)
	}
	current, err := t.codec.Decode(cells)
	if err != nil {
		return Row[T]{}, t.malformed(row, err)
	}
	next, err := mutate(current)
	if err != nil {
		return Row[T]{}, err
	}

	updated := pad(t.codec.Encode(next), t.schema.Width())
	updated[t.schema.KeyColumn] = key
	if err := t.backend.WriteRow(ctx, t.schema.Sheet, row, updated); err != nil {
		return Row[T]{}, t.wrap(OpUpdate, err)
	}
	return t.decodeRow(row, updated)
}

// DeleteRow removes the row stored under key and returns what it held.
func (t *Table[T]) DeleteRow(ctx context.Context, key string) (out Row[T], err error) {
	defer t.observe(OpDelete, time.Now(), &err)

	unlock, err := t.lock(ctx)
	if err != nil {
		return Row[T]{}, err
	}
	defer t.release(ctx, unlock)

	row, cells, err := t.locate(ctx, key)
	if err != nil {
		return Row[T]{}, err
	}
	removed, err := t.decodeRow(row, cells)
	if err != nil {
		return Row[T]{}, err
	}
	if err := t.backend.DeleteRow(ctx, t.schema.Sheet, row); err != nil {
		return Row[T]{}, t.wrap(OpDelete, err)
	}
	// every row below shifted up
	_ = t.index.Invalidate(ctx, t.schema.Sheet)
	return removed, nil
}

// SetColumn writes value into column for every row match accepts and returns
// how many cells changed. Rows already holding value are left untouched.
func (t *Table[T]) SetColumn(ctx context.Context, column int, value string, match func(Row[T]) bool) (count int, err error) {
	defer t.observe(OpSetColumn, time.Now(), &err)
	if column < 0 || column >= t.schema.Width() {
		return 0, fmt.Errorf("rowstore: column %d out of range for %s", column, t.schema.Sheet)
	}

	unlock, err := t.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer t.release(ctx, unlock)

	rows, cellsByRow, err := t.readAllCells(ctx)
	if err != nil {
		return 0, err
	}
	var updates []CellUpdate
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if Cell(cellsByRow[r.Row], column) == value {
			continue
		}
		updates = append(updates, CellUpdate{Row: r.Row, Column: column, Value: value})
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err := t.backend.WriteCells(ctx, t.schema.Sheet, updates); err != nil {
		return 0, t.wrap(OpSetColumn, err)
	}
	return len(updates), nil
}

// locate resolves key to its row, trying the index hint first and falling back
// to a full scan that rebuilds the index.
func (t *Table[T]) locate(ctx context.Context, key string) (int, []string, error) {
	if !t.schema.Keyed() {
		return 0, nil, ErrNoKeyColumn
	}
	if key == "" {
		return 0, nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}

	if hint, ok, err := t.index.Lookup(ctx, t.schema.Sheet, key); err == nil && ok && hint > 1 {
		cells, err := t.backend.ReadRow(ctx, t.schema.Sheet, hint, t.schema.Width())
		if err != nil {
			return 0, nil, t.wrap(OpFind, err)
		}
		if Cell(cells, t.schema.KeyColumn) == key {
			return hint, pad(cells, t.schema.Width()), nil
		}
	}

	grid, err := t.backend.ReadAll(ctx, t.schema.Sheet, t.schema.Width())
	if err != nil {
		return 0, nil, t.wrap(OpFind, err)
	}
	entries := t.keyRows(grid)
	_ = t.index.Replace(ctx, t.schema.Sheet, entries)
	found, ok := entries[key]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s %q", ErrNotFound, t.schema.Sheet, key)
	}
	return found, pad(grid[found-1], t.schema.Width()), nil
}

// keyRows maps each key to the first row holding it. Only the key cell is read.
func (t *Table[T]) keyRows(grid [][]string) map[string]int {
	keys := map[string]int{}
	for i := 1; i < len(grid); i++ {
		k := Cell(grid[i], t.schema.KeyColumn)
		if k == "" {
			continue
		}
		if _, seen := keys[k]; !seen {
			keys[k] = i + 1
		}
	}
	return keys
}

func (t *Table[T]) readAllCells(ctx context.Context) ([]Row[T], map[int][]string, error) {
	grid, err := t.backend.ReadAll(ctx, t.schema.Sheet, t.schema.Width())
	if err != nil {
		return nil, nil, t.wrap(OpReadAll, err)
	}
	if t.schema.Keyed() {
		_ = t.index.Replace(ctx, t.schema.Sheet, t.keyRows(grid))
	}
	rows := make([]Row[T], 0, len(grid))
	cells := make(map[int][]string, len(grid))
	for i := 1; i < len(grid); i++ {
		if blank(grid[i]) {
			continue
		}
		rowNum := i + 1
		padded := pad(grid[i], t.schema.Width())
		decoded, err := t.decodeRow(rowNum, padded)
		if err != nil {
			var bad *MalformedRowError
			if t.onMalformed == nil || !errors.As(err, &bad) {
				return nil, nil, err
			}
			t.onMalformed(ctx, bad)
			continue
		}
		rows = append(rows, decoded)
		cells[rowNum] = padded
	}
	return rows, cells, nil
}

func (t *Table[T]) decodeRow(row int, cells []string) (Row[T], error) {
	record, err := t.codec.Decode(cells)
	if err != nil {
		return Row[T]{}, t.malformed(row, err)
	}
	return Row[T]{Record: record, Row: row, ETag: ETag(cells)}, nil
}

func (t *Table[T]) uniqueKey(existing map[string]int) (string, error) {
	for attempt := 0; attempt < t.keyAttempts; attempt++ {
		candidate, err := t.newKey()
		if err != nil {
			return "", fmt.Errorf("rowstore: generate key: %w", err)
		}
		if _, taken := existing[candidate]; !taken && candidate != "" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s: no unique key after %d attempts", ErrDuplicateKey, t.schema.Sheet, t.keyAttempts)
}

func (t *Table[T]) lock(ctx context.Context) (Unlock, error) {
	waitCtx, cancel := context.WithTimeout(ctx, t.lockWait)
	defer cancel()
	unlock, err := t.locker.Lock(waitCtx, t.schema.Sheet)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, t.schema.Sheet, err)
	}
	return unlock, nil
}

func (t *Table[T]) release(ctx context.Context, unlock Unlock) {
	start := time.Now()
	err := unlock(context.WithoutCancel(ctx))
	if err != nil {
		t.observer.Observe(t.schema.Sheet, OpUnlock, time.Since(start), err)
	}
}

func (t *Table[T]) observe(op string, start time.Time, err *error) {
	t.observer.Observe(t.schema.Sheet, op, time.Since(start), *err)
}

func (t *Table[T]) wrap(op string, err error) error {
	return fmt.Errorf("rowstore: %s %s: %w", op, t.schema.Sheet, err)
}

func (t *Table[T]) malformed(row int, err error) error {
	return &MalformedRowError{Sheet: t.schema.Sheet, Row: row, Err: err}
}
