package cashinhand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/shopspring/decimal"
)

// SheetName is the ledger tab.
const SheetName = "CashInHand"

var schema = rowstore.Schema{
	Sheet:     SheetName,
	Header:    []string{"key", "date", "type", "amount", "description", "createdBy", "createdDate"},
	KeyColumn: 0,
}

type codec struct{}

func (codec) Encode(e Entry) []string {
	return []string{e.Key, e.Date, string(e.Type), e.Amount.String(), e.Description, e.CreatedBy, e.CreatedDate}
}

func (codec) Decode(cells []string) (Entry, error) {
	amount := decimal.Zero
	if raw := strings.ReplaceAll(strings.TrimSpace(rowstore.Cell(cells, 3)), ",", ""); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return Entry{}, fmt.Errorf("amount %q: %w", raw, err)
		}
		amount = parsed
	}
	return Entry{
		Key:         rowstore.Cell(cells, 0),
		Date:        rowstore.Cell(cells, 1),
		Type:        enums.CashInHandType(rowstore.Cell(cells, 2)),
		Amount:      amount,
		Description: rowstore.Cell(cells, 4),
		CreatedBy:   rowstore.Cell(cells, 5),
		CreatedDate: rowstore.Cell(cells, 6),
	}, nil
}

// Repository persists ledger adjustments.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entry Entry) (Entry, error)
}

type sheetRepository struct {
	table *rowstore.Table[Entry]
}

func NewRepository(base repo.Base) (Repository, error) {
	table, err := repo.Open[Entry](base, schema, codec{})
	if err != nil {
		return nil, err
	}
	return &sheetRepository{table: table}, nil
}

// List reads a sheet that does not exist yet as an empty ledger.
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
		out = append(out, row.Record)
	}
	return out, nil
}

// Append creates the sheet on the first write that finds it missing.
func (r *sheetRepository) Append(ctx context.Context, entry Entry) (Entry, error) {
	row, err := r.table.AppendCreating(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	return row.Record, nil
}
