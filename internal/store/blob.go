package store

import (
	"context"
	"errors"
	"sync"
)

// ErrBlobNotFound is returned by BlobStore.Load for a missing blob.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is durable storage for named opaque blobs.
type BlobStore interface {
	// Load returns the named blob, or ErrBlobNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save creates or overwrites the named blob.
	Save(ctx context.Context, name string, data []byte) error

	// Delete removes the named blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Compile-time interface guard.
var _ BlobStore = (*MemoryBlobStore)(nil)

// MemoryBlobStore keeps blobs in process memory. Used in tests and for
// ephemeral runs.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

// NewMemoryBlobStore returns an empty MemoryBlobStore.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBlobStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryBlobStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
