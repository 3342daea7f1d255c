package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// maxPutAttempts bounds optimistic-lock retries when writers race on a key.
const maxPutAttempts = 3

// RedisStore keeps entries as JSON values without a Redis expiry so that
// expired entries remain available as a fallback.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore writing keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(jurisdictionID string) string {
	return s.prefix + jurisdictionID
}

func (s *RedisStore) Get(ctx context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error) {
	val, err := s.client.Get(ctx, s.key(jurisdictionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ordinance cache entry: %w", err)
	}

	var entry models.OrdinanceCacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ordinance cache entry: %w", err)
	}
	return &entry, nil
}

// Put compares fetch times under WATCH so that a slower, older fetch cannot
// replace a newer one written concurrently.
func (s *RedisStore) Put(ctx context.Context, entry *models.OrdinanceCacheEntry) (bool, error) {
	key := s.key(entry.JurisdictionID)
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal ordinance cache entry: %w", err)
	}

	written := false
	txf := func(tx *redis.Tx) error {
		written = false

		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var existing models.OrdinanceCacheEntry
			if err := json.Unmarshal(current, &existing); err == nil && !existing.FetchedAt.Before(entry.FetchedAt) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}

	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return false, fmt.Errorf("failed to put ordinance cache entry: %w", err)
	}
	return written, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
