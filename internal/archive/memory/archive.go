// Package memory keeps archived page snapshots in process memory. Intended
// for tests and local development where losing snapshots on exit is fine.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive implements crawler.BlobStore over a map.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New constructs an empty Archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// PutObject stores a copy of data under path.
func (a *Archive) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[path] = append([]byte(nil), data...)
	return "memory://" + path, nil
}

// Get returns the stored snapshot, if present.
func (a *Archive) Get(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[path]
	return data, ok
}

// Len reports the number of stored snapshots.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
