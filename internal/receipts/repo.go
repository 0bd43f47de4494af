package receipts

import (
	"context"
	"errors"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

// SheetName is the attachment table.
const SheetName = "Receipt"

const colDisplayName = 8

var schema = rowstore.Schema{
	Sheet: SheetName,
	Header: []string{
		"receiptKey", "transactionKey", "fileName", "fileUrl", "fileId",
		"uploadDate", "uploadBy", "description", "displayName",
	},
	KeyColumn: 0,
}

type codec struct{}

func (codec) Encode(r Receipt) []string {
	return []string{
		r.ReceiptKey,
		r.TransactionKey,
		r.FileName,
		r.FileURL,
		r.FileID,
		r.UploadDate,
		r.UploadBy,
		r.Description,
		r.DisplayName,
	}
}

func (codec) Decode(cells []string) (Receipt, error) {
	return Receipt{
		ReceiptKey:     rowstore.Cell(cells, 0),
		TransactionKey: rowstore.Cell(cells, 1),
		FileName:       rowstore.Cell(cells, 2),
		FileURL:        rowstore.Cell(cells, 3),
		FileID:         rowstore.Cell(cells, 4),
		UploadDate:     rowstore.Cell(cells, 5),
		UploadBy:       rowstore.Cell(cells, 6),
		Description:    rowstore.Cell(cells, 7),
		DisplayName:    rowstore.Cell(cells, colDisplayName),
	}, nil
}

// Repository persists receipt metadata.
type Repository interface {
	List(ctx context.Context) ([]Receipt, error)
	Get(ctx context.Context, key string) (Receipt, error)
	Create(ctx context.Context, receipt Receipt) (Receipt, error)
	Update(ctx context.Context, key string, mutate func(Receipt) (Receipt, error)) (Receipt, error)
	Delete(ctx context.Context, key string) (Receipt, error)
}

type sheetRepository struct {
	table *rowstore.Table[Receipt]
}

func NewRepository(base repo.Base) (Repository, error) {
	table, err := repo.OpenLenient[Receipt](base, schema, codec{})
	if err != nil {
		return nil, err
	}
	return &sheetRepository{table: table}, nil
}

func (r *sheetRepository) List(ctx context.Context) ([]Receipt, error) {
	rows, err := r.table.ReadAll(ctx)
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Receipt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record)
	}
	return out, nil
}

func (r *sheetRepository) Get(ctx context.Context, key string) (Receipt, error) {
	row, err := r.table.Get(ctx, key)
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return Receipt{}, rowstore.ErrNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	return row.Record, nil
}

func (r *sheetRepository) Create(ctx context.Context, receipt Receipt) (Receipt, error) {
	row, err := r.table.AppendCreating(ctx, receipt)
	if err != nil {
		return Receipt{}, err
	}
	return row.Record, nil
}

func (r *sheetRepository) Update(ctx context.Context, key string, mutate func(Receipt) (Receipt, error)) (Receipt, error) {
	row, err := r.table.UpdateRow(ctx, key, mutate, rowstore.UpdateOptions{})
	if err != nil {
		return Receipt{}, err
	}
	return row.Record, nil
}

func (r *sheetRepository) Delete(ctx context.Context, key string) (Receipt, error) {
	row, err := r.table.DeleteRow(ctx, key)
	if err != nil {
		return Receipt{}, err
	}
	return row.Record, nil
}
