package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is a process-local Backend. It does not survive restarts and is
// meant for tests and for running with persistence switched off.
type Memory struct {
	opener

	mu          sync.RWMutex
	records     map[string]Record
	unavailable error
}

// NewMemory creates an unopened in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// SetUnavailable makes the next Init fail with cause, simulating a platform
// that denies storage access. It has no effect once Init has run.
func (m *Memory) SetUnavailable(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = cause
}

// Init prepares the record map.
func (m *Memory) Init(_ context.Context) error {
	return m.open(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.unavailable != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, m.unavailable)
		}
		m.records = make(map[string]Record)
		return nil
	})
}

// Get returns a copy of the record stored under key.
func (m *Memory) Get(_ context.Context, key string) (Record, bool, error) {
	if err := m.ready(); err != nil {
		return Record{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

// Put stores a copy of rec, replacing any previous record for the key.
func (m *Memory) Put(_ context.Context, rec Record) error {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = cloneRecord(rec)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// DeleteAll removes every record.
func (m *Memory) DeleteAll(_ context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	return nil
}

// Keys returns every key in ascending order.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// List returns a copy of every record ordered by key.
func (m *Memory) List(_ context.Context) ([]Record, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneRecord(rec))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close is a no-op; it exists so Memory can stand in wherever a closable
// backend is expected.
func (m *Memory) Close() error { return nil }

func cloneRecord(rec Record) Record {
	rec.Value = append([]byte(nil), rec.Value...)
	return rec
}
