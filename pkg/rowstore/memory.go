package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps sheets in process memory. It backs tests and the
// "memory" store driver.
type MemoryBackend struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sheets: map[string][][]string{}}
}

// Seed replaces the sheet contents with rows, header first.
func (m *MemoryBackend) Seed(sheet string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid := make([][]string, 0, len(rows))
	for _, r := range rows {
		grid = append(grid, append([]string(nil), r...))
	}
	m.sheets[sheet] = grid
}

// Drop removes a sheet entirely.
func (m *MemoryBackend) Drop(sheet string) {
	m.mu.Lock()
	delete(m.sheets, sheet)
	m.mu.Unlock()
}

func (m *MemoryBackend) ReadAll(_ context.Context, sheet string, width int) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	out := make([][]string, len(grid))
	for i, r := range grid {
		out[i] = clip(r, width)
	}
	return out, nil
}

func (m *MemoryBackend) ReadRow(_ context.Context, sheet string, row, width int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	if row < 1 || row > len(grid) {
		return nil, nil
	}
	return clip(grid[row-1], width), nil
}

func (m *MemoryBackend) AppendRow(_ context.Context, sheet string, cells []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	m.sheets[sheet] = append(grid, append([]string(nil), cells...))
	return len(grid) + 1, nil
}

func (m *MemoryBackend) WriteRow(_ context.Context, sheet string, row int, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	if row < 1 {
		return fmt.Errorf("rowstore: invalid row %d", row)
	}
	for len(grid) < row {
		grid = append(grid, nil)
	}
	grid[row-1] = append([]string(nil), cells...)
	m.sheets[sheet] = grid
	return nil
}

func (m *MemoryBackend) WriteCells(_ context.Context, sheet string, updates []CellUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	for _, u := range updates {
		if u.Row < 1 || u.Column < 0 {
			return fmt.Errorf("rowstore: invalid cell %d:%d", u.Row, u.Column)
		}
		for len(grid) < u.Row {
			grid = append(grid, nil)
		}
		r := grid[u.Row-1]
		if len(r) <= u.Column {
			r = pad(r, u.Column+1)
		}
		r[u.Column] = u.Value
		grid[u.Row-1] = r
	}
	m.sheets[sheet] = grid
	return nil
}

func (m *MemoryBackend) DeleteRow(_ context.Context, sheet string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	if row < 2 || row > len(grid) {
		return fmt.Errorf("rowstore: row %d out of range", row)
	}
	m.sheets[sheet] = append(grid[:row-1], grid[row:]...)
	return nil
}

func (m *MemoryBackend) EnsureSheet(_ context.Context, sheet string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if ok && len(grid) > 0 && !blank(grid[0]) {
		return nil
	}
	if len(grid) == 0 {
		grid = [][]string{nil}
	}
	grid[0] = append([]string(nil), header...)
	m.sheets[sheet] = grid
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

// clip copies at most width cells and drops trailing blanks, mirroring how
// the Sheets API trims empty trailing cells.
func clip(r []string, width int) []string {
	n := len(r)
	if width > 0 && n > width {
		n = width
	}
	for n > 0 && r[n-1] == "" {
		n--
	}
	return append([]string(nil), r[:n]...)
}
