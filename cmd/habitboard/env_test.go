package main

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/credential"
	"github.com/nhle/habitboard/internal/localstore"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/tests/testutil"
)

func newTestEnv(t *testing.T, token string) (*env, *apitest.Server, *localstore.Store) {
	t.Helper()
	ctx := context.Background()

	srv := apitest.New(t)
	srv.Seed(model.Task{ID: 1, Title: "Read", Date: "2026-02-01"})
	srv.RequireToken("fresh", "ann")

	db := testutil.NewTestStore(t)
	local := localstore.New(credential.NewVault(keyring.NewArrayKeyring(nil)), db)
	require.NoError(t, local.SetToken(token))
	require.NoError(t, local.SetProfile(ctx, model.Profile{Username: "ann"}))

	cfg := &model.AppConfig{API: model.APIConfig{BaseURL: srv.URL(), TimeoutSec: 2}}
	return newEnv(cfg, db, local), srv, local
}

func TestNewEnv_RejectedTokenClearsSession(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, e *env) error
	}{
		{name: "task list", call: func(ctx context.Context, e *env) error {
			_, err := e.deps.Queries.Tasks(ctx)
			return err
		}},
		{name: "day list", call: func(ctx context.Context, e *env) error {
			_, err := e.deps.Queries.TasksByDate(ctx, "2026-02-01")
			return err
		}},
		{name: "profile", call: func(ctx context.Context, e *env) error {
			_, err := e.deps.Profile.Fetch(ctx)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e, _, local := newTestEnv(t, "stale")
			cache.Set(e.deps.Store, cache.StreaksKey("2026-02-01"), map[int64]int{1: 3})
			require.True(t, e.deps.Auth.SignedIn())

			_ = tt.call(ctx, e)

			assert.False(t, e.deps.Auth.SignedIn())
			assert.Empty(t, local.Token())
			p, err := local.GetProfile(ctx)
			require.NoError(t, err)
			assert.Nil(t, p)
			assert.Empty(t, e.deps.Store.Keys(cache.Key{}))
		})
	}
}

func TestNewEnv_AcceptedTokenIsKept(t *testing.T) {
	ctx := context.Background()
	e, _, local := newTestEnv(t, "fresh")

	tasks, err := e.deps.Queries.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, "fresh", local.Token())
}

func TestNewEnv_RejectedMutationReportsAuthError(t *testing.T) {
	ctx := context.Background()
	e, _, local := newTestEnv(t, "fresh")
	_, err := e.deps.Queries.Tasks(ctx)
	require.NoError(t, err)

	// The token expires between two commands.
	require.NoError(t, local.SetToken("stale"))

	_, err = e.deps.Engine.Toggle(ctx, 1)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.Empty(t, local.Token())
	assert.Empty(t, e.deps.Store.Keys(cache.Key{}), "rollback does not bring back cleared views")
}
