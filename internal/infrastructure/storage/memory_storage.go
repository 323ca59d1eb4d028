package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/infrastructure/event"
)

var (
	_ appfinance.ObjectStorage = (*MemoryObjectStorage)(nil)
	_ event.ObjectWriter       = (*MemoryObjectStorage)(nil)
)

// MemoryObjectStorage keeps objects in process memory. It backs development
// setups without an S3 endpoint; everything is lost on restart.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a stored blob
type Object struct {
	Body        []byte
	ContentType string
}

// NewMemoryObjectStorage creates an empty MemoryObjectStorage
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string]Object)}
}

// Put stores a copy of body under key
func (s *MemoryObjectStorage) Put(_ context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Body: slices.Clone(body), ContentType: contentType}
	return nil
}

// Get returns the object stored under key
func (s *MemoryObjectStorage) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists stored keys in sorted order
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.objects))
}
