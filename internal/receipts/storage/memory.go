package storage

import (
	"context"
	"sync"
)

// Memory keeps files in process and serves them under BaseURL.
type Memory struct {
	BaseURL string

	mu    sync.RWMutex
	files map[string]File
}

type File struct {
	ContentType string
	Data        []byte
}

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: baseURL, files: make(map[string]File)}
}

func (m *Memory) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = File{ContentType: contentType, Data: data}
	return m.BaseURL + "/" + key, nil
}

// Get returns a stored file, for serving and tests.
func (m *Memory) Get(key string) (File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key]
	return f, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
