package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestSQLiteStore_ProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetProfile(ctx)
	require.ErrorIs(t, err, ErrNoProfile)

	p := model.Profile{
		Username:  "alice",
		Email:     "a@example.com",
		CreatedAt: "2026-01-02T03:04:05Z",
		Stats:     &model.ProfileStats{TotalTasks: 3, CompletedTasks: 1, PendingTasks: 2},
	}
	require.NoError(t, s.SetProfile(ctx, p))

	got, err := s.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	require.NoError(t, s.RemoveProfile(ctx))
	_, err = s.GetProfile(ctx)
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestSQLiteStore_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("no profile is a no-op", func(t *testing.T) {
		ok, err := s.UpdateProfile(ctx, model.ProfilePatch{Bio: strPtr("x")})
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.GetProfile(ctx)
		assert.ErrorIs(t, err, ErrNoProfile, "update must not create a profile")
	})

	t.Run("merges only set fields", func(t *testing.T) {
		require.NoError(t, s.SetProfile(ctx, model.Profile{
			Username: "bob", Email: "b@example.com", Bio: "old",
		}))

		ok, err := s.UpdateProfile(ctx, model.ProfilePatch{Bio: strPtr("new")})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.GetProfile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
		assert.Equal(t, "b@example.com", got.Email)
		assert.Equal(t, "new", got.Bio)
		assert.Nil(t, got.Stats)
	})
}

func TestSQLiteStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.GetSetting(ctx, "view")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, "view", "calendar"))
	require.NoError(t, s.SetSetting(ctx, "view", "board"))
	v, err = s.GetSetting(ctx, "view")
	require.NoError(t, err)
	assert.Equal(t, "board", v)

	require.NoError(t, s.DeleteSetting(ctx, "view"))
	v, err = s.GetSetting(ctx, "view")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSQLiteStore_MigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.runMigrations())

	var version int
	require.NoError(t, s.db.Get(&version, "SELECT MAX(version) FROM schema_version"))
	assert.Equal(t, len(migrations), version)
}
