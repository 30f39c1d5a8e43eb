package testutil

import (
	"testing"

	"github.com/HerbHall/newslens/internal/store"
)

// NewStore creates an empty Store checkpointing to an in-memory blob
// store, using the production id prefixes.
func NewStore(t *testing.T) (*store.Store, *store.MemoryBlobStore) {
	t.Helper()
	blobs := store.NewMemoryBlobStore()
	return store.New(blobs, Logger(), store.WithIDPrefix("queryHistory", "query")), blobs
}

// NewSQLiteBlobs opens an in-memory SQLite blob store.
// It is closed automatically when the test completes.
func NewSQLiteBlobs(t *testing.T) *store.SQLiteBlobStore {
	t.Helper()
	b, err := store.NewSQLiteBlobStore(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("testutil.NewSQLiteBlobs: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}
