package prepared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

const keyPrefix = "prepared:"

// RedisStore keeps prepared registrations in redis with a TTL, so pending
// prepares survive process restarts and expire without a sweeper.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func key(payloadHash domain.Hash) string {
	return keyPrefix + payloadHash.String()
}

func (s *RedisStore) Save(ctx context.Context, reg Registration, ttl time.Duration) error {
	raw, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode prepared registration: %w", err)
	}
	if err := s.client.Set(ctx, key(reg.PayloadHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save prepared registration: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, payloadHash domain.Hash) (*Registration, error) {
	raw, err := s.client.Get(ctx, key(payloadHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load prepared registration: %w", err)
	}
	var reg Registration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("decode prepared registration: %w", err)
	}
	return &reg, nil
}

func (s *RedisStore) Delete(ctx context.Context, payloadHash domain.Hash) error {
	if err := s.client.Del(ctx, key(payloadHash)).Err(); err != nil {
		return fmt.Errorf("delete prepared registration: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
