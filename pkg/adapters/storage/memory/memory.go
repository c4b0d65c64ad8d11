package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
)

// KeyedStore implements ports.KeyedStore using an in-memory map.
// This is for testing purposes only. Values are stored serialized so reads
// exercise the same round-trip as the Redis implementation. TTL is not
// enforced; expiry is a cleanup policy the core never depends on.
type KeyedStore struct {
	entries map[string][]byte
	mu      sync.RWMutex
}

// NewKeyedStore creates a new in-memory keyed store
func NewKeyedStore() *KeyedStore {
	return &KeyedStore{
		entries: make(map[string][]byte),
	}
}

// Put serializes v and stores it under the namespaced key
func (s *KeyedStore) Put(ctx context.Context, kind ports.Kind, id string, v interface{}) error {
	key := entityKey(kind, id)

	data, err := json.Marshal(v)
	if err != nil {
		return &domain.StoreError{Op: "put", Key: key, Err: fmt.Errorf("marshal: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = data
	return nil
}

// Get retrieves and deserializes the entity stored under kind and id
func (s *KeyedStore) Get(ctx context.Context, kind ports.Kind, id string, out interface{}) error {
	key := entityKey(kind, id)

	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.StoreError{Op: "get", Key: key, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	return nil
}

// Exists checks whether an entity is stored under kind and id
func (s *KeyedStore) Exists(ctx context.Context, kind ports.Kind, id string) (bool, error) {
	key := entityKey(kind, id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[key]
	return ok, nil
}

// Len returns the number of stored entities
func (s *KeyedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func entityKey(kind ports.Kind, id string) string {
	return fmt.Sprintf("refinery:%s:%s", kind, id)
}
