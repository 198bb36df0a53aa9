package store

import (
	"context"
	"sync"
)

type memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemory returns a process-local backend. Contents are lost on exit.
func NewMemory() Backend {
	return &memory{tables: make(map[string][]Row)}
}

func (m *memory) Read(_ context.Context, key Key) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []Row
	for i, row := range m.tables[key.Table] {
		if key.contains(i + 1) {
			rows = append(rows, row)
		}
	}
	return copyRows(rows), nil
}

func (m *memory) Write(_ context.Context, key Key, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.tables[key.Table]
	for i, row := range copyRows(rows) {
		idx := key.first() - 1 + i
		for len(table) <= idx {
			table = append(table, Row{})
		}
		table[idx] = row
	}
	m.tables[key.Table] = table
	return nil
}

func (m *memory) Append(_ context.Context, key Key, rows []Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := len(m.tables[key.Table]) + 1
	m.tables[key.Table] = append(m.tables[key.Table], copyRows(rows)...)
	return first, nil
}

func (m *memory) Close() error {
	return nil
}
