package rpcstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobpath/jobpath-server/oauth/tokenrepo"
)

func TestCheckRateLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to max calls in a window", func(t *testing.T) {
		store := NewInMemoryStore()
		for i := 0; i < 3; i++ {
			allowed, err := store.CheckRateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
			require.NoError(t, err)
			require.True(t, allowed)
		}
		allowed, err := store.CheckRateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		require.False(t, allowed)
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := NewInMemoryStore(WithNowTime(func() time.Time { return clock }))

		for i := 0; i < 3; i++ {
			_, err := store.CheckRateLimit(ctx, "k", 2, time.Minute)
			require.NoError(t, err)
		}
		allowed, err := store.CheckRateLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		require.False(t, allowed)

		clock = clock.Add(time.Minute + time.Second)
		allowed, err = store.CheckRateLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := NewInMemoryStore()
		for i := 0; i < 5; i++ {
			_, err := store.CheckRateLimit(ctx, "busy", 1, time.Minute)
			require.NoError(t, err)
		}
		allowed, err := store.CheckRateLimit(ctx, "quiet", 1, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	})
}

func TestLoginAttempts(t *testing.T) {
	ctx := context.Background()

	t.Run("recent attempts come back newest first", func(t *testing.T) {
		store := NewInMemoryStore()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			require.NoError(t, store.RecordLoginAttempt(ctx, LoginAttempt{
				UserID: "user-1", IP: "1.2.3.4", Success: i != 1,
				At: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		attempts, err := store.RecentLoginAttempts(ctx, "user-1", 2)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		require.Equal(t, base.Add(2*time.Minute), attempts[0].At)
		require.Equal(t, base.Add(time.Minute), attempts[1].At)
	})

	t.Run("requires a user ID", func(t *testing.T) {
		store := NewInMemoryStore()
		require.Error(t, store.RecordLoginAttempt(ctx, LoginAttempt{}))
	})

	t.Run("unknown user has no attempts", func(t *testing.T) {
		store := NewInMemoryStore()
		attempts, err := store.RecentLoginAttempts(ctx, "nobody", 10)
		require.NoError(t, err)
		require.Empty(t, attempts)
	})
}

func TestAdminDashboardStats(t *testing.T) {
	ctx := context.Background()

	tokens := tokenrepo.NewInMemoryRepo()
	require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
		UserID: "alice", Provider: "google", AccessToken: "a",
		Expiry: time.Now().Add(time.Hour),
	}))

	store := NewInMemoryStore(WithTokenCounter(tokens))
	require.NoError(t, store.RecordLoginAttempt(ctx, LoginAttempt{UserID: "alice", Success: true, At: time.Now()}))
	require.NoError(t, store.RecordLoginAttempt(ctx, LoginAttempt{UserID: "alice", Success: false, At: time.Now()}))
	require.NoError(t, store.RecordLoginAttempt(ctx, LoginAttempt{UserID: "bob", Success: true, At: time.Now()}))

	stats, err := store.AdminDashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.UsersSeen)
	require.Equal(t, 3, stats.LoginAttempts)
	require.Equal(t, 1, stats.FailedAttempts)
	require.Equal(t, 1, stats.LinkedCalendars)
}
