package tokenrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("upsert overwrites by user and provider", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Upsert(ctx, &StoredToken{UserID: "u1", Provider: "google", AccessToken: "a1", Expiry: now}))
		require.NoError(t, repo.Upsert(ctx, &StoredToken{UserID: "u1", Provider: "google", AccessToken: "a2", Expiry: now}))

		tok, err := repo.Get(ctx, "u1", "google")
		require.NoError(t, err)
		require.Equal(t, "a2", tok.AccessToken)
	})

	t.Run("missing token is not found", func(t *testing.T) {
		repo := NewInMemoryRepo()
		_, err := repo.Get(ctx, "u1", "google")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Upsert(ctx, &StoredToken{UserID: "u1", Provider: "google", AccessToken: "a1", Expiry: now}))
		require.NoError(t, repo.Delete(ctx, "u1", "google"))
		require.NoError(t, repo.Delete(ctx, "u1", "google"))
	})

	t.Run("count by provider", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Upsert(ctx, &StoredToken{UserID: "u1", Provider: "google", AccessToken: "a", Expiry: now}))
		require.NoError(t, repo.Upsert(ctx, &StoredToken{UserID: "u2", Provider: "google", AccessToken: "b", Expiry: now}))

		count, err := repo.CountByProvider(ctx, "google")
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	margin := 30 * time.Second

	t.Run("fresh token is not expired", func(t *testing.T) {
		tok := &StoredToken{Expiry: now.Add(time.Hour)}
		require.False(t, tok.Expired(now, margin))
	})

	t.Run("token inside the margin counts as expired", func(t *testing.T) {
		tok := &StoredToken{Expiry: now.Add(10 * time.Second)}
		require.True(t, tok.Expired(now, margin))
	})

	t.Run("zero expiry never expires", func(t *testing.T) {
		tok := &StoredToken{}
		require.False(t, tok.Expired(now, margin))
	})
}
