// Package store provides the in-process table store behind the API.
// Tables hold JSON records keyed by a store-assigned id. The whole store
// is checkpointed to a durable blob after each mutation and restored from
// it once at startup.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotBlobName is the durable blob holding the store snapshot.
const SnapshotBlobName = "db"

// ErrCheckpoint marks a Mutate whose snapshot could not be saved.
var ErrCheckpoint = errors.New("checkpoint failed")

// Snapshot is the serializable content of every table.
type Snapshot map[string][]json.RawMessage

// DecodeSnapshot parses a snapshot blob.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Store is a set of named tables of JSON records.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]json.RawMessage

	// writer serializes Mutate calls so each mutation and its checkpoint
	// complete before the next mutation starts.
	writer sync.Mutex

	blobs    BlobStore
	prefixes map[string]string
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDPrefix sets the prefix used for ids generated in table.
// Tables without a prefix use the table name.
func WithIDPrefix(table, prefix string) Option {
	return func(s *Store) { s.prefixes[table] = prefix }
}

// New returns an empty store that checkpoints to blobs.
func New(blobs BlobStore, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		tables:   make(map[string][]json.RawMessage),
		blobs:    blobs,
		prefixes: make(map[string]string),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads its content: the saved snapshot when one
// exists, otherwise seed. Seeding does not write a snapshot.
func Open(ctx context.Context, blobs BlobStore, seed Snapshot, logger *zap.Logger, opts ...Option) (*Store, error) {
	s := New(blobs, logger, opts...)

	data, err := blobs.Load(ctx, SnapshotBlobName)
	switch {
	case errors.Is(err, ErrBlobNotFound):
		if err := s.Import(seed); err != nil {
			return nil, fmt.Errorf("import seed data: %w", err)
		}
		s.logger.Info("store seeded", zap.Int("tables", len(seed)))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if err := s.Import(snap); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	s.logger.Info("store restored from snapshot", zap.Int("bytes", len(data)))
	return s, nil
}

// Export returns a deep copy of every table.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.tables))
	for name, rows := range s.tables {
		cp := make([]json.RawMessage, len(rows))
		for i, r := range rows {
			cp[i] = append(json.RawMessage(nil), r...)
		}
		snap[name] = cp
	}
	return snap
}

// Import replaces the entire store content with snap. Every record must
// be a JSON object; nothing is replaced if any record is invalid.
func (s *Store) Import(snap Snapshot) error {
	tables := make(map[string][]json.RawMessage, len(snap))
	for name, rows := range snap {
		cp := make([]json.RawMessage, len(rows))
		for i, r := range rows {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(r, &obj); err != nil {
				return fmt.Errorf("table %q record %d: %w", name, i, err)
			}
			cp[i] = append(json.RawMessage(nil), r...)
		}
		tables[name] = cp
	}

	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()
	return nil
}

// Tables returns the table names in sorted order.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of records in table.
func (s *Store) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// Checkpoint writes the current snapshot to the blob store.
func (s *Store) Checkpoint(ctx context.Context) error {
	start := time.Now()
	data, err := json.Marshal(s.Export())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.blobs.Save(ctx, SnapshotBlobName, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("snapshot written",
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Mutate runs fn under the store's writer lock and checkpoints the
// result. A write is either persisted or leaves no trace: when fn returns
// an error the tables are rolled back, nothing is saved and that error is
// returned as-is; when the checkpoint fails the tables are rolled back and
// the error wraps ErrCheckpoint.
func (s *Store) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	before := s.Export()
	if err := fn(ctx); err != nil {
		s.restore(before)
		return err
	}
	if err := s.Checkpoint(ctx); err != nil {
		s.restore(before)
		return fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	return nil
}

// restore swaps in tables captured by Export. Only called under the
// writer lock.
func (s *Store) restore(snap Snapshot) {
	s.mu.Lock()
	s.tables = map[string][]json.RawMessage(snap)
	s.mu.Unlock()
}

// newID returns a fresh id for table, e.g. "query_5f0c...".
func (s *Store) newID(table string) string {
	prefix, ok := s.prefixes[table]
	if !ok {
		prefix = strings.TrimSuffix(table, "s")
	}
	return prefix + "_" + uuid.NewString()
}

// Insert stores rec in table under a freshly generated id and returns the
// stored record. rec must encode as a JSON object; any "id" it carries is
// replaced.
func Insert[T any](s *Store, table string, rec T) (T, error) {
	return InsertChecked(s, table, rec, nil)
}

// InsertChecked is Insert guarded by check, which sees every existing
// record of table and may veto the insert by returning an error. The
// check and the insert happen atomically.
func InsertChecked[T any](s *Store, table string, rec T, check func(existing []T) error) (T, error) {
	var zero T

	raw, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s record: %w", table, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return zero, fmt.Errorf("%s record is not a JSON object", table)
	}
	idRaw, err := json.Marshal(s.newID(table))
	if err != nil {
		return zero, err
	}
	fields["id"] = idRaw
	stored, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("encode %s record: %w", table, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if check != nil {
		existing, err := decodeRows[T](table, s.tables[table])
		if err != nil {
			return zero, err
		}
		if err := check(existing); err != nil {
			return zero, err
		}
	}
	s.tables[table] = append(s.tables[table], stored)

	var out T
	if err := json.Unmarshal(stored, &out); err != nil {
		return zero, fmt.Errorf("decode %s record: %w", table, err)
	}
	return out, nil
}

// FindOne returns the first record of table matching pred.
func FindOne[T any](s *Store, table string, pred func(T) bool) (T, bool, error) {
	var zero T
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, r := range s.tables[table] {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return zero, false, fmt.Errorf("decode %s record %d: %w", table, i, err)
		}
		if pred == nil || pred(v) {
			return v, true, nil
		}
	}
	return zero, false, nil
}

// FindAll returns every record of table matching pred, in insertion order.
// A nil pred matches everything.
func FindAll[T any](s *Store, table string, pred func(T) bool) ([]T, error) {
	s.mu.RLock()
	rows, err := decodeRows[T](table, s.tables[table])
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return rows, nil
	}
	out := make([]T, 0, len(rows))
	for _, v := range rows {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func decodeRows[T any](table string, raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", table, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
