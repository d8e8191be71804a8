package storage

import (
	"context"
	"strings"
	"sync"
)

// MockStorage implements the Storage interface in memory, for testing.
type MockStorage struct {
	data map[string][]byte
	lock sync.Mutex
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		data: make(map[string][]byte),
	}
}

func (m *MockStorage) Write(ctx context.Context, key string, body []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	b := make([]byte, len(body))
	copy(b, body)
	m.data[key] = b
	return nil
}

func (m *MockStorage) Read(ctx context.Context, key string) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	body, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	b := make([]byte, len(body))
	copy(b, body)
	return b, nil
}

func (m *MockStorage) Remove(ctx context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}

	delete(m.data, key)
	return nil
}

func (m *MockStorage) List(ctx context.Context, path string) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if len(path) == 0 || strings.HasPrefix(key, path) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}
