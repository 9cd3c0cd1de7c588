package storage

import (
	"fmt"
	"sync"
)

// MemoryBackend is an in-process Backend for tools and tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	props map[string][]byte
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{props: make(map[string][]byte)}
}

func memoryKey(objectKey, propKey string) string {
	return objectKey + "/" + propKey
}

// ObjectPropExists implements Backend.
func (b *MemoryBackend) ObjectPropExists(objectKey, propKey string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.props[memoryKey(objectKey, propKey)]
	return ok
}

// LoadObjectProp implements Backend.
func (b *MemoryBackend) LoadObjectProp(objectKey, propKey string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.props[memoryKey(objectKey, propKey)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: no such property", objectKey, propKey)
	}
	return append([]byte(nil), data...), nil
}

// SaveObjectProp implements Backend.
func (b *MemoryBackend) SaveObjectProp(objectKey, propKey string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.props[memoryKey(objectKey, propKey)] = append([]byte(nil), data...)
	return nil
}

// DeleteObjectProp implements Backend.
func (b *MemoryBackend) DeleteObjectProp(objectKey, propKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.props, memoryKey(objectKey, propKey))
	return nil
}
