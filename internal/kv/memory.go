package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrReadOnly is returned when a View closure attempts a write.
var ErrReadOnly = errors.New("kv: write inside read-only transaction")

// Memory implements Store with an in-process map. Mutations are staged in an
// overlay and folded into the base map only when the Update closure returns
// nil, so a failed mutation leaves no partial state behind.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(readTx{data: m.data})
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		base:    m.data,
		staged:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for k := range tx.deleted {
		delete(m.data, k)
	}
	for k, v := range tx.staged {
		m.data[k] = v
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of stored keys. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

type readTx struct {
	data map[string][]byte
}

func (t readTx) Get(key string) ([]byte, bool, error) {
	v, ok := t.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t readTx) Has(key string) (bool, error) {
	_, ok := t.data[key]
	return ok, nil
}

func (t readTx) Set(string, []byte) error { return ErrReadOnly }
func (t readTx) Delete(string) error      { return ErrReadOnly }

type memTx struct {
	base    map[string][]byte
	staged  map[string][]byte
	deleted map[string]struct{}
}

func (t *memTx) Get(key string) ([]byte, bool, error) {
	if _, gone := t.deleted[key]; gone {
		return nil, false, nil
	}
	if v, ok := t.staged[key]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, true, nil
	}
	v, ok := t.base[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *memTx) Has(key string) (bool, error) {
	_, found, err := t.Get(key)
	return found, err
}

func (t *memTx) Set(key string, value []byte) error {
	delete(t.deleted, key)
	v := make([]byte, len(value))
	copy(v, value)
	t.staged[key] = v
	return nil
}

func (t *memTx) Delete(key string) error {
	delete(t.staged, key)
	t.deleted[key] = struct{}{}
	return nil
}
