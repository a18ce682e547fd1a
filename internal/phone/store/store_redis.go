package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"instantverify/pkg/platform/sentinel"
)

const (
	challengeKeyPrefix = "otp:challenge:"
	sendKeyPrefix      = "otp:sends:"
)

// RedisStore shares OTP state across instances. Challenges and counters
// expire on their own through key TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// incrementAttempts bumps the attempt counter only while the challenge still
// exists, so an expired key is never recreated without its hash and TTL.
var incrementAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// Save replaces any outstanding challenge under key and resets its attempts.
func (s *RedisStore) Save(ctx context.Context, key string, hash []byte, ttl time.Duration) error {
	redisKey := challengeKeyPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, redisKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Challenge, error) {
	fields, err := s.client.HGetAll(ctx, challengeKeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("load otp challenge: %w", err)
	}
	hash, ok := fields["hash"]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("parse otp attempts: %w", err)
	}
	return &Challenge{Hash: []byte(hash), Attempts: attempts}, nil
}

// IncrementAttempts counts one guess and returns the new total. It returns
// sentinel.ErrNotFound when the challenge expired in the meantime.
func (s *RedisStore) IncrementAttempts(ctx context.Context, key string) (int, error) {
	n, err := incrementAttempts.Run(ctx, s.client, []string{challengeKeyPrefix + key}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	if n < 0 {
		return 0, sentinel.ErrNotFound
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}

// CountSend increments the fixed-window send counter for phone and returns the
// count including this send. The window starts at the first send.
func (s *RedisStore) CountSend(ctx context.Context, phone string, window time.Duration) (int, error) {
	key := sendKeyPrefix + phone
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count otp send: %w", err)
	}
	return int(incr.Val()), nil
}
