package blob

import (
	"context"
	"fmt"
	"sync"
)

// memoryObject is one stored blob with its upload attributes.
type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// MemoryStore keeps content blobs in process memory. Meant for development
// mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores a copy of the object data.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memoryObject{
		data:        stored,
		contentType: contentType,
		metadata:    meta,
	}

	return nil
}

// Get returns a copy of the object data.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return data, nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}

var _ Store = (*MemoryStore)(nil)
