package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier(). It is safe for
// concurrent use and intended for tests, examples and process-local sets.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (Record, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Record{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, record Record) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if err := CheckETag(record.Meta.ETag, current.Meta, exists); err != nil {
		return cloneMeta(current.Meta), err
	}
	stored := cloneRecord(record)
	stored.Meta = NextMeta(record.Meta, record.Values, s.now())
	s.records[key] = stored
	return cloneMeta(stored.Meta), nil
}

// Delete drops the record of ref.
func (s *MemoryStore) Delete(ref Ref) {
	key, err := ref.Identifier()
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// Snapshot returns the stored record of ref.
func (s *MemoryStore) Snapshot(ref Ref) (Record, bool) {
	record, ok, err := s.Load(context.Background(), ref)
	if err != nil {
		return Record{}, false
	}
	return record, ok
}
