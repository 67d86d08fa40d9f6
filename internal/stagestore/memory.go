package stagestore

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns a process-local store. Nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{data: make(map[string]map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, session, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[session][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, session, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[session]
	if !ok {
		s = make(map[string]string)
		m.data[session] = s
	}
	s[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, session, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[session], key)
	return nil
}

func (m *memoryStore) Close() error { return nil }
