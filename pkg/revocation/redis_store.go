package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the durable Revocation Index backend, adapted from the
// go-redis/v8 usage in pkg/rate/redis.go. Revocations are stored as a
// Redis set (for Has) plus individually keyed JSON records (for inspection
// and future auditing), both under keyPrefix.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore builds a durable revocation store over an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "consent:revocation"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) setKey() string {
	return s.keyPrefix + ":set"
}

func (s *RedisStore) recordKey(tokenHash string) string {
	return fmt.Sprintf("%s:record:%s", s.keyPrefix, tokenHash)
}

// Put implements Durable.
func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("revocation: marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.setKey(), rec.TokenHash)
	pipe.Set(ctx, s.recordKey(rec.TokenHash), data, 0)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("revocation: redis write: %w", err)
	}
	return nil
}

// Has implements Durable.
func (s *RedisStore) Has(ctx context.Context, tokenHash string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.setKey(), tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: redis read: %w", err)
	}
	return ok, nil
}

// NewRedisClient is a small convenience wrapper matching the teacher's
// direct redis.NewClient(&redis.Options{...}) construction style.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
