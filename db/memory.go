// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process. Used by tests and dry runs.
type MemoryBackend struct {
	mu      sync.Mutex
	tables  map[string][]byte
	failErr error
}

func NewMemory() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string][]byte)}
}

func (m *MemoryBackend) Read(_ context.Context, table string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.tables[table]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (m *MemoryBackend) Write(_ context.Context, table string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.tables[table] = append([]byte(nil), payload...)
	return nil
}

// FailWrites makes every following Write return err. Pass nil to recover.
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Raw returns the stored document for table, or nil.
func (m *MemoryBackend) Raw(table string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.tables[table]...)
}

func (m *MemoryBackend) Close() error {
	return nil
}
