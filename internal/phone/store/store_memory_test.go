package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantverify/pkg/platform/sentinel"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInMemoryStore_ChallengeLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewInMemoryStore(WithClock(clock.now))
	const phone = "+919876543210"

	_, err := s.Get(ctx, phone)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Save(ctx, phone, []byte("hash"), time.Minute))
	n, err := s.IncrementAttempts(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := s.Get(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), c.Hash)
	assert.Equal(t, 1, c.Attempts)

	// a new send resets attempts
	require.NoError(t, s.Save(ctx, phone, []byte("hash2"), time.Minute))
	c, err = s.Get(ctx, phone)
	require.NoError(t, err)
	assert.Zero(t, c.Attempts)

	clock.advance(time.Minute)
	_, err = s.Get(ctx, phone)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.IncrementAttempts(ctx, phone)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_IncrementAttemptsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	const key = "user-1:+919876543210"
	require.NoError(t, s.Save(ctx, key, []byte("hash"), time.Minute))

	const guesses = 50
	var (
		mu     sync.Mutex
		counts = make(map[int]bool)
		wg     sync.WaitGroup
	)
	for range guesses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.IncrementAttempts(ctx, key)
			assert.NoError(t, err)
			mu.Lock()
			counts[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, counts, guesses, "every guess gets its own count")
	c, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, guesses, c.Attempts)
}

func TestInMemoryStore_CountSendWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewInMemoryStore(WithClock(clock.now))
	const phone = "+919876543210"

	for want := 1; want <= 3; want++ {
		n, err := s.CountSend(ctx, phone, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		clock.advance(time.Minute)
	}

	clock.advance(7 * time.Minute)
	n, err := s.CountSend(ctx, phone, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "window restarts after it expires")

	n, err = s.CountSend(ctx, "+919000000000", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "counters are per phone")
}
