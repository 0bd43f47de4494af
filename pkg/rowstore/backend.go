package rowstore

import "context"

// Backend is a spreadsheet-shaped grid of string cells. Row numbers are
// 1-based and row 1 holds the header.
type Backend interface {
	// ReadAll returns every row of the sheet, header included, limited to width columns.
	ReadAll(ctx context.Context, sheet string, width int) ([][]string, error)
	// ReadRow returns a single row. Rows past the end of the data come back empty.
	ReadRow(ctx context.Context, sheet string, row, width int) ([]string, error)
	// AppendRow adds cells after the last data row and returns the row number written.
	AppendRow(ctx context.Context, sheet string, cells []string) (int, error)
	// WriteRow overwrites an existing row in place.
	WriteRow(ctx context.Context, sheet string, row int, cells []string) error
	// WriteCells applies single-cell writes in one batch.
	WriteCells(ctx context.Context, sheet string, updates []CellUpdate) error
	// DeleteRow removes a row and shifts the rows below it up by one.
	DeleteRow(ctx context.Context, sheet string, row int) error
	// EnsureSheet creates the sheet with the given header when it does not exist.
	EnsureSheet(ctx context.Context, sheet string, header []string) error
	Ping(ctx context.Context) error
}

// CellUpdate addresses one cell by 1-based row and 0-based column.
type CellUpdate struct {
	Row    int
	Column int
	Value  string
}

// ColumnName converts a 0-based column index to its A1 letter form.
func ColumnName(index int) string {
	if index < 0 {
		return ""
	}
	var letters []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		letters = append([]byte{byte('A' + (n-1)%26)}, letters...)
	}
	return string(letters)
}
