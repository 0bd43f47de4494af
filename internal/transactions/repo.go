package transactions

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/shopspring/decimal"
)

// DefaultSheet is used when no sheet name is configured.
const DefaultSheet = "Transaction"

const (
	colStatus         = 7
	colCreatedDate    = 10
	colCreatedBy      = 11
	colApprovedDate   = 12
	colApprovedBy     = 13
	colLastUserUpdate = 14
)

var header = []string{
	"key", "account", "date", "type", "who", "amount", "description", "status",
	"takePut", "remark", "createdDate", "createdBy", "approvedDate", "approvedBy",
	"lastUserUpdate", "lastDateUpdate",
}

type codec struct{}

func (codec) Encode(r Record) []string {
	return []string{
		r.Key,
		string(r.Account),
		r.Date,
		string(r.Type),
		r.Who,
		formatAmount(r.Amount),
		r.Description,
		string(r.Status),
		rowstore.FormatBool(r.TakePut),
		r.Remark,
		r.CreatedDate,
		r.CreatedBy,
		r.ApprovedDate,
		r.ApprovedBy,
		r.LastUserUpdate,
		r.LastDateUpdate,
	}
}

func (codec) Decode(cells []string) (Record, error) {
	amount, err := parseAmount(rowstore.Cell(cells, 5))
	if err != nil {
		return Record{}, err
	}
	takePut, err := rowstore.ParseBool(rowstore.Cell(cells, 8))
	if err != nil {
		return Record{}, fmt.Errorf("takePut: %w", err)
	}
	return Record{
		Key:            rowstore.Cell(cells, 0),
		Account:        enums.Account(rowstore.Cell(cells, 1)),
		Date:           rowstore.Cell(cells, 2),
		Type:           enums.TransactionType(rowstore.Cell(cells, 3)),
		Who:            rowstore.Cell(cells, 4),
		Amount:         amount,
		Description:    rowstore.Cell(cells, 6),
		Status:         enums.TransactionStatus(rowstore.Cell(cells, 7)),
		TakePut:        takePut,
		Remark:         rowstore.Cell(cells, 9),
		CreatedDate:    rowstore.Cell(cells, 10),
		CreatedBy:      rowstore.Cell(cells, 11),
		ApprovedDate:   rowstore.Cell(cells, 12),
		ApprovedBy:     rowstore.Cell(cells, 13),
		LastUserUpdate: rowstore.Cell(cells, 14),
		LastDateUpdate: rowstore.Cell(cells, 15),
	}, nil
}

func formatAmount(d decimal.Decimal) string {
	return d.String()
}

// parseAmount accepts blank cells and thousands separators typed by hand.
func parseAmount(raw string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", raw, err)
	}
	return d, nil
}

// Repository persists transaction records.
type Repository interface {
	Ensure(ctx context.Context) error
	List(ctx context.Context) ([]rowstore.Row[Record], error)
	Get(ctx context.Context, key string) (rowstore.Row[Record], error)
	Create(ctx context.Context, record Record) (rowstore.Row[Record], error)
	Update(ctx context.Context, key string, mutate func(Record) (Record, error), ifMatch string) (rowstore.Row[Record], error)
	Delete(ctx context.Context, key string) (rowstore.Row[Record], error)
}

type sheetRepository struct {
	table *rowstore.Table[Record]
}

// NewRepository binds the transaction sheet named sheet, or DefaultSheet when empty.
func NewRepository(base repo.Base, sheet string) (Repository, error) {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	table, err := repo.Open[Record](base, rowstore.Schema{Sheet: sheet, Header: header, KeyColumn: 0}, codec{})
	if err != nil {
		return nil, err
	}
	return &sheetRepository{table: table}, nil
}

func (r *sheetRepository) Ensure(ctx context.Context) error {
	return r.table.Ensure(ctx)
}

func (r *sheetRepository) List(ctx context.Context) ([]rowstore.Row[Record], error) {
	return r.table.ReadAll(ctx)
}

func (r *sheetRepository) Get(ctx context.Context, key string) (rowstore.Row[Record], error) {
	return r.table.Get(ctx, key)
}

func (r *sheetRepository) Create(ctx context.Context, record Record) (rowstore.Row[Record], error) {
	return r.table.Append(ctx, record)
}

func (r *sheetRepository) Update(ctx context.Context, key string, mutate func(Record) (Record, error), ifMatch string) (rowstore.Row[Record], error) {
	return r.table.UpdateRow(ctx, key, mutate, rowstore.UpdateOptions{IfMatch: ifMatch})
}

func (r *sheetRepository) Delete(ctx context.Context, key string) (rowstore.Row[Record], error) {
	return r.table.DeleteRow(ctx, key)
}
