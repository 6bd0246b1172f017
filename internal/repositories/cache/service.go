package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps the Redis client with the JSON value operations,
// atomic accumulators and capped lists the settlement core relies on.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheService creates a cache service with a default TTL for entries
// written without an explicit lifetime.
func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Set stores a JSON-encoded value with the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

// SetWithTTL stores a JSON-encoded value with an explicit TTL.
func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get loads a JSON value into dest. The second return is false when the key
// is absent; absence is not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// GetFloat reads a numeric accumulator. An absent key reads as (0, false, nil):
// callers treat missing accumulators as zero spend, by contract.
func (s *CacheService) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	val, err := s.client.Get(ctx, key).Float64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get accumulator: %w", err)
	}
	return val, true, nil
}

// IncrByFloat atomically adds delta to a numeric accumulator and pins its
// expiry. The increment is the only write path for accumulators; there is no
// read-modify-write anywhere.
func (s *CacheService) IncrByFloat(ctx context.Context, key string, delta float64, expireAt time.Time) (float64, error) {
	var incr *redis.FloatCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrByFloat(ctx, key, delta)
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment accumulator: %w", err)
	}
	return incr.Val(), nil
}

// Delete removes keys. Missing keys are not an error.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeleteByPattern removes every key matching a glob pattern via SCAN.
func (s *CacheService) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// PushCapped prepends a JSON value onto a list, truncates it to cap entries
// and refreshes the list TTL, all in one round trip.
func (s *CacheService) PushCapped(ctx context.Context, key string, value interface{}, cap int, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal list entry: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(cap-1))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// ListRange returns the raw JSON entries of a list, newest first.
func (s *CacheService) ListRange(ctx context.Context, key string, limit int) ([]string, error) {
	end := int64(-1)
	if limit > 0 {
		end = int64(limit - 1)
	}
	return s.client.LRange(ctx, key, 0, end).Result()
}

// listUpdateRetries bounds the optimistic-locking retries of UpdateList.
const listUpdateRetries = 5

// UpdateList rewrites a list in place under WATCH, preserving order and
// resetting the TTL. The rewrite callback receives the current raw entries
// and returns the replacement values; nil means leave the list untouched.
// A concurrent writer invalidates the transaction and the read-rewrite-write
// cycle runs again, so entries pushed mid-rewrite are never lost.
func (s *CacheService) UpdateList(ctx context.Context, key string, ttl time.Duration, rewrite func(entries []string) ([]interface{}, error)) error {
	txf := func(tx *redis.Tx) error {
		entries, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		values, err := rewrite(entries)
		if err != nil {
			return err
		}
		if values == nil {
			return nil
		}

		encoded := make([]interface{}, 0, len(values))
		for _, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal list entry: %w", err)
			}
			encoded = append(encoded, data)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(encoded) > 0 {
				pipe.RPush(ctx, key, encoded...)
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < listUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("list %s kept changing under rewrite", key)
}

// Client exposes the raw client for pub/sub consumers.
func (s *CacheService) Client() *redis.Client {
	return s.client
}

// HealthCheck pings Redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// FlushAll clears the whole cache. Development use only.
func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close releases the underlying client.
func (s *CacheService) Close() error {
	return s.client.Close()
}
