package persistence

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by a Backend when the key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// Backend is durable key/value storage for serialized collections.
// Implemented by storage.Store (SQLite), storage.RedisBackend and
// MemoryBackend.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryBackend keeps values in a map. The Fail* hooks let tests inject
// storage failures per key.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte

	FailGet func(key string) error
	FailPut func(key string) error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		if err := m.FailGet(key); err != nil {
			return nil, err
		}
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return err
		}
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Raw returns the stored bytes for key, bypassing failure hooks.
func (m *MemoryBackend) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}
