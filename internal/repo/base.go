package repo

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

// Base provides a shared foundation for sheet repositories: one backend and the
// table options (index, locker, observer) every sheet is opened with.
type Base struct {
	backend rowstore.Backend
	opts    []rowstore.Option
	logg    *logger.Logger
}

// NewBase constructs a Base over backend.
func NewBase(backend rowstore.Backend, opts ...rowstore.Option) Base {
	return Base{backend: backend, opts: opts}
}

// WithLogger sets where lenient tables report the rows they skip.
func (b Base) WithLogger(logg *logger.Logger) Base {
	b.logg = logg
	return b
}

func (b Base) Backend() rowstore.Backend {
	return b.backend
}

// Open binds schema on the shared backend. Reads fail on a row that does not
// decode; money sheets use it so a bad cell never drops out of a total.
func Open[T any](b Base, schema rowstore.Schema, codec rowstore.Codec[T]) (*rowstore.Table[T], error) {
	return rowstore.NewTable[T](b.backend, schema, codec, b.opts...)
}

// OpenLenient is Open for sheets where a listing should survive one bad row:
// the row is skipped and logged.
func OpenLenient[T any](b Base, schema rowstore.Schema, codec rowstore.Codec[T]) (*rowstore.Table[T], error) {
	logg := b.logg
	if logg == nil {
		logg = logger.Nop()
	}
	opts := append([]rowstore.Option{}, b.opts...)
	opts = append(opts, rowstore.WithMalformedRowHandler(func(ctx context.Context, bad *rowstore.MalformedRowError) {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"sheet": bad.Sheet,
			"row":   bad.Row,
			"error": bad.Err.Error(),
		}), "skipping malformed row")
	}))
	return rowstore.NewTable[T](b.backend, schema, codec, opts...)
}

// Translate maps row store failures onto typed errors. Typed errors pass
// through untouched; anything unrecognised is reported as an upstream failure.
func Translate(err error, entity, action string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	var bad *rowstore.MalformedRowError
	switch {
	case errors.As(err, &bad):
		return pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, entity+" sheet has a malformed row").WithDetails(map[string]any{
			"sheet": bad.Sheet,
			"row":   bad.Row,
			"error": bad.Err.Error(),
		})
	case errors.Is(err, rowstore.ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	case errors.Is(err, rowstore.ErrConflict):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, entity+" changed since it was read")
	case errors.Is(err, rowstore.ErrDuplicateKey):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, entity+" key already exists")
	case errors.Is(err, rowstore.ErrLockTimeout):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, entity+" sheet is busy")
	case errors.Is(err, rowstore.ErrSheetNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, entity+" sheet is missing")
	default:
		return pkgerrors.Upstream(err, action)
	}
}
