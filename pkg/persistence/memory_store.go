package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps JSON encoded records in memory. Records are copies:
// changing a memento after Save does not change what Load returns.
type MemoryStore struct {
	mutex   sync.RWMutex
	records map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, id string, memento any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	data, err := json.Marshal(memento)
	if err != nil {
		return fmt.Errorf("encode %q: %w", id, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[id] = data
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string, into any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.RLock()
	data, ok := s.records[id]
	s.mutex.RUnlock()

	if !ok {
		return fmt.Errorf("memento %q: %w", id, ErrNotFound)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %q: %w", id, err)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.records, id)
	return nil
}

// IDs returns the stored ids in sorted order
func (s *MemoryStore) IDs() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
