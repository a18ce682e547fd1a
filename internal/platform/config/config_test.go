package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "")
	t.Setenv("OTP_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(1), cfg.Server.NodeID)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 3, cfg.OTP.SendLimit)
	assert.Equal(t, 10*time.Minute, cfg.OTP.SendWindow)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 120, cfg.RateLimit.IPRequests)
	assert.Equal(t, 60, cfg.RateLimit.UserRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("INSTANTVERIFY_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,k1:9092")
	t.Setenv("RATE_LIMIT_USER_REQUESTS", "0")
	t.Setenv("OTP_TTL", "2m")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Minute, cfg.OTP.TTL)
	assert.Zero(t, cfg.RateLimit.UserRequests)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("STORAGE", StoragePostgres)
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("STORAGE", "sqlite")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "STORAGE")
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("OTP_TTL", "five minutes")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "OTP_TTL")
	})
	t.Run("node id out of range", func(t *testing.T) {
		t.Setenv("NODE_ID", "4096")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "NODE_ID")
	})
	t.Run("non-positive rate limit window", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_WINDOW", "0s")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "RATE_LIMIT_WINDOW")
	})
}
