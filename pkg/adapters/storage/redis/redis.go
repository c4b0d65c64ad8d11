package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyedStore implements ports.KeyedStore using Redis
type KeyedStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewKeyedStore creates a new Redis keyed store. Every write carries ttl.
func NewKeyedStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *KeyedStore {
	return &KeyedStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Put serializes v and saves it under the namespaced key with TTL
func (s *KeyedStore) Put(ctx context.Context, kind ports.Kind, id string, v interface{}) error {
	key := entityKey(kind, id)

	data, err := json.Marshal(v)
	if err != nil {
		return &domain.StoreError{Op: "put", Key: key, Err: fmt.Errorf("marshal: %w", err)}
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return &domain.StoreError{Op: "put", Key: key, Err: err}
	}

	s.logger.Debug("entity saved",
		zap.String("kind", string(kind)),
		zap.String("id", id))

	return nil
}

// Get retrieves and deserializes the entity stored under kind and id
func (s *KeyedStore) Get(ctx context.Context, kind ports.Kind, id string, out interface{}) error {
	key := entityKey(kind, id)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
		}
		return &domain.StoreError{Op: "get", Key: key, Err: err}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.StoreError{Op: "get", Key: key, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	return nil
}

// Exists checks whether an entity is stored under kind and id
func (s *KeyedStore) Exists(ctx context.Context, kind ports.Kind, id string) (bool, error) {
	key := entityKey(kind, id)

	result, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Key: key, Err: err}
	}

	return result > 0, nil
}

// entityKey returns the Redis key for an entity kind and identifier
func entityKey(kind ports.Kind, id string) string {
	return fmt.Sprintf("refinery:%s:%s", kind, id)
}
