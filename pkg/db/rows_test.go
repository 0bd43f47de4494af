package db

import (
	"context"
	"testing"

	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRowBackend(t *testing.T) *RowBackend {
	t.Helper()
	backend, err := NewRowBackend(NewFromGorm(newTestDB(t)))
	require.NoError(t, err)
	return backend
}

func TestRowBackendMissingSheet(t *testing.T) {
	b := newRowBackend(t)
	ctx := context.Background()

	_, err := b.ReadAll(ctx, "Receipt", 9)
	require.ErrorIs(t, err, rowstore.ErrSheetNotFound)
	_, err = b.AppendRow(ctx, "Receipt", []string{"r1"})
	require.ErrorIs(t, err, rowstore.ErrSheetNotFound)
	_, err = b.ReadRow(ctx, "Receipt", 2, 9)
	require.ErrorIs(t, err, rowstore.ErrSheetNotFound)
}

func TestRowBackendAppendReadDelete(t *testing.T) {
	b := newRowBackend(t)
	ctx := context.Background()

	require.NoError(t, b.EnsureSheet(ctx, "S", []string{"key", "name", "note"}))
	require.NoError(t, b.EnsureSheet(ctx, "S", []string{"ignored"}))

	for _, k := range []string{"a", "b", "c"} {
		_, err := b.AppendRow(ctx, "S", []string{k, "n-" + k, ""})
		require.NoError(t, err)
	}
	row, err := b.AppendRow(ctx, "S", []string{"d", "n-d"})
	require.NoError(t, err)
	assert.Equal(t, 5, row)

	grid, err := b.ReadAll(ctx, "S", 3)
	require.NoError(t, err)
	require.Len(t, grid, 5)
	assert.Equal(t, []string{"key", "name", "note"}, grid[0])
	assert.Equal(t, []string{"b", "n-b"}, grid[2], "trailing blanks trimmed")

	require.NoError(t, b.DeleteRow(ctx, "S", 3))
	grid, err = b.ReadAll(ctx, "S", 3)
	require.NoError(t, err)
	require.Len(t, grid, 4)
	assert.Equal(t, "c", grid[2][0])
	assert.Equal(t, "d", grid[3][0])

	require.Error(t, b.DeleteRow(ctx, "S", 1), "header cannot be deleted")
	require.Error(t, b.DeleteRow(ctx, "S", 40))
}

func TestRowBackendWriteRowAndCells(t *testing.T) {
	b := newRowBackend(t)
	ctx := context.Background()
	require.NoError(t, b.EnsureSheet(ctx, "S", []string{"key", "name", "status"}))
	_, err := b.AppendRow(ctx, "S", []string{"a", "alpha", "1"})
	require.NoError(t, err)
	_, err = b.AppendRow(ctx, "S", []string{"b", "beta", "1"})
	require.NoError(t, err)

	require.NoError(t, b.WriteRow(ctx, "S", 2, []string{"a", "ALPHA", "1"}))
	require.NoError(t, b.WriteCells(ctx, "S", []rowstore.CellUpdate{
		{Row: 2, Column: 2, Value: "0"},
		{Row: 3, Column: 2, Value: "0"},
		{Row: 3, Column: 4, Value: "x"},
	}))

	row, err := b.ReadRow(ctx, "S", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ALPHA", "0"}, row)

	row, err = b.ReadRow(ctx, "S", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "beta", "0", "", "x"}, row)

	past, err := b.ReadRow(ctx, "S", 10, 3)
	require.NoError(t, err)
	assert.Nil(t, past)
}

type rowPair struct {
	Key  string
	Name string
}

type rowPairCodec struct{}

func (rowPairCodec) Encode(p rowPair) []string { return []string{p.Key, p.Name} }
func (rowPairCodec) Decode(cells []string) (rowPair, error) {
	return rowPair{Key: rowstore.Cell(cells, 0), Name: rowstore.Cell(cells, 1)}, nil
}

func TestRowBackendServesTable(t *testing.T) {
	b := newRowBackend(t)
	ctx := context.Background()
	table, err := rowstore.NewTable[rowPair](b, rowstore.Schema{Sheet: "Pairs", Header: []string{"key", "name"}}, rowPairCodec{})
	require.NoError(t, err)
	require.NoError(t, table.Ensure(ctx))

	first, err := table.Append(ctx, rowPair{Name: "one"})
	require.NoError(t, err)
	second, err := table.Append(ctx, rowPair{Name: "two"})
	require.NoError(t, err)

	_, err = table.DeleteRow(ctx, first.Record.Key)
	require.NoError(t, err)

	got, err := table.Get(ctx, second.Record.Key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Row)
	assert.Equal(t, "two", got.Record.Name)

	updated, err := table.UpdateRow(ctx, second.Record.Key, func(p rowPair) (rowPair, error) {
		p.Name = "deux"
		return p, nil
	}, rowstore.UpdateOptions{IfMatch: got.ETag})
	require.NoError(t, err)
	assert.Equal(t, "deux", updated.Record.Name)
}
