//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"instantverify/internal/ratelimit"
	"instantverify/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = ratelimit.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()

	for i := range 3 {
		r, err := s.store.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
		s.Require().NoError(err)
		s.True(r.Allowed)
		s.Equal(2-i, r.Remaining)
	}

	r, err := s.store.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
	s.Require().NoError(err)
	s.False(r.Allowed)
	s.WithinDuration(time.Now().Add(time.Minute), r.ResetAt, 5*time.Second)

	ttl, err := s.redis.Client.PTTL(ctx, "ratelimit:ip:203.0.113.7").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()

	r, err := s.store.Allow(ctx, "user:u1", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(r.Allowed)

	r, err = s.store.Allow(ctx, "user:u1", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.False(r.Allowed)

	s.Eventually(func() bool {
		r, err := s.store.Allow(ctx, "user:u1", 1, 200*time.Millisecond)
		return err == nil && r.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}
