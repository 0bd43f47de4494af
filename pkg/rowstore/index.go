package rowstore

import (
	"context"
	"sync"
)

// Index caches key to row number hints. Hints may be stale; the table verifies
// every hit against the backend before trusting it.
type Index interface {
	Lookup(ctx context.Context, sheet, key string) (row int, ok bool, err error)
	Replace(ctx context.Context, sheet string, entries map[string]int) error
	Put(ctx context.Context, sheet, key string, row int) error
	Invalidate(ctx context.Context, sheet string) error
}

// MemoryIndex is a process-local Index.
type MemoryIndex struct {
	mu     sync.RWMutex
	sheets map[string]map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{sheets: map[string]map[string]int{}}
}

func (m *MemoryIndex) Lookup(_ context.Context, sheet, key string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.sheets[sheet][key]
	return row, ok, nil
}

func (m *MemoryIndex) Replace(_ context.Context, sheet string, entries map[string]int) error {
	copied := make(map[string]int, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	m.mu.Lock()
	m.sheets[sheet] = copied
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Put(_ context.Context, sheet, key string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.sheets[sheet]
	if !ok {
		entries = map[string]int{}
		m.sheets[sheet] = entries
	}
	entries[key] = row
	return nil
}

func (m *MemoryIndex) Invalidate(_ context.Context, sheet string) error {
	m.mu.Lock()
	delete(m.sheets, sheet)
	m.mu.Unlock()
	return nil
}
