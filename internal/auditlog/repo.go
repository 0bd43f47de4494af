package auditlog

import (
	"context"
	"errors"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

const (
	// SheetName is the audit log tab.
	SheetName = "audit_log"

	colStatus = 8
)

var schema = rowstore.Schema{
	Sheet:     SheetName,
	Header:    []string{"time", "user", "action", "object", "field", "old", "new", "detail", "status"},
	KeyColumn: rowstore.NoKeyColumn,
}

type codec struct{}

func (codec) Encode(e Entry) []string {
	return []string{e.Time, e.User, e.Action, e.Object, e.Field, e.Old, e.New, e.Detail, string(e.Status)}
}

func (codec) Decode(cells []string) (Entry, error) {
	return Entry{
		Time:   rowstore.Cell(cells, 0),
		User:   rowstore.Cell(cells, 1),
		Action: rowstore.Cell(cells, 2),
		Object: rowstore.Cell(cells, 3),
		Field:  rowstore.Cell(cells, 4),
		Old:    rowstore.Cell(cells, 5),
		New:    rowstore.Cell(cells, 6),
		Detail: rowstore.Cell(cells, 7),
		Status: enums.AuditVisibility(rowstore.Cell(cells, colStatus)),
	}, nil
}

// Repository persists audit entries.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	SetStatus(ctx context.Context, status enums.AuditVisibility, match func(Entry) bool) (int, error)
}

type sheetRepository struct {
	table *rowstore.Table[Entry]
}

// NewRepository binds the audit log sheet of backend.
func NewRepository(base repo.Base) (Repository, error) {
	table, err := repo.OpenLenient[Entry](base, schema, codec{})
	if err != nil {
		return nil, err
	}
	return &sheetRepository{table: table}, nil
}

func (r *sheetRepository) Append(ctx context.Context, entry Entry) error {
	_, err := r.table.AppendCreating(ctx, entry)
	return err
}

// List returns entries in sheet order. A sheet that was never created reads as empty.
func (r *sheetRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.table.ReadAll(ctx)
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := row.Record
		entry.row = row.Row
		out = append(out, entry)
	}
	return out, nil
}

func (r *sheetRepository) SetStatus(ctx context.Context, status enums.AuditVisibility, match func(Entry) bool) (int, error) {
	count, err := r.table.SetColumn(ctx, colStatus, string(status), func(row rowstore.Row[Entry]) bool {
		return match(row.Record)
	})
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return 0, nil
	}
	return count, err
}
