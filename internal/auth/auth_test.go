package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/auth"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/localstore"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/tests/testutil"
)

func newAuth(t *testing.T) (*auth.Service, *apitest.Server, *localstore.Store, *cache.Store) {
	t.Helper()
	srv := apitest.New(t)
	local := testutil.NewTestLocalStore(t)
	store := cache.New(cache.Options{DefaultStaleTime: time.Minute})
	return auth.New(srv.Client(local), local, store), srv, local, store
}

func TestRegister_SeedsProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, local, _ := newAuth(t)

	require.NoError(t, svc.Register(ctx, model.Credentials{Username: " bob ", Password: "hunter2"}))
	assert.True(t, svc.SignedIn())
	assert.Equal(t, "token-bob", local.Token())

	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "bob", p.Username)
	assert.Equal(t, model.DefaultStats(), p.Stats)
	assert.False(t, p.CreatedTime().IsZero())
}

func TestRegister_Validation(t *testing.T) {
	svc, srv, _, _ := newAuth(t)

	tests := []struct {
		name  string
		creds model.Credentials
		field string
	}{
		{name: "no username", creds: model.Credentials{Username: "  ", Password: "secret1"}, field: "username"},
		{name: "no password", creds: model.Credentials{Username: "bob"}, field: "password"},
		{name: "short password", creds: model.Credentials{Username: "bob", Password: "ÿÿÿÿÿ"}, field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(context.Background(), tt.creds)
			var ve *auth.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Zero(t, srv.TotalHits())
}

func TestLogin_KeepsOrRenamesProfile(t *testing.T) {
	ctx := context.Background()
	svc, srv, local, _ := newAuth(t)
	srv.AddUser("carol", "secret1", api.ServerProfile{})

	require.NoError(t, local.SetProfile(ctx, model.Profile{
		Username:  "old-name",
		Bio:       "kept",
		CreatedAt: "2025-01-01T00:00:00Z",
	}))

	require.NoError(t, svc.Login(ctx, model.Credentials{Username: "carol", Password: "secret1"}))

	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Username)
	assert.Equal(t, "kept", p.Bio)
	assert.Equal(t, "2025-01-01T00:00:00Z", p.CreatedAt)
}

func TestLogin_CreatesProfileWhenMissing(t *testing.T) {
	ctx := context.Background()
	svc, srv, local, _ := newAuth(t)
	srv.AddUser("dan", "secret1", api.ServerProfile{})

	require.NoError(t, svc.Login(ctx, model.Credentials{Username: "dan", Password: "secret1"}))

	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dan", p.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, srv, local, _ := newAuth(t)
	srv.AddUser("erin", "secret1", api.ServerProfile{})

	err := svc.Login(ctx, model.Credentials{Username: "erin", Password: "nope"})
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.False(t, svc.SignedIn())

	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLogout_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	svc, _, local, store := newAuth(t)
	require.NoError(t, svc.Register(ctx, model.Credentials{Username: "fay", Password: "secret1"}))
	cache.Set(store, cache.TasksKey(), []model.Task{{ID: 1, Title: "x"}})

	require.NoError(t, svc.Logout(ctx))

	assert.False(t, svc.SignedIn())
	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, store.Keys(cache.Key{}))
}

func TestExpire_ClearsRejectedSession(t *testing.T) {
	ctx := context.Background()
	srv := apitest.New(t)
	srv.RequireToken("fresh", "gus")
	local := testutil.NewTestLocalStore(t)
	store := cache.New(cache.Options{DefaultStaleTime: time.Minute})
	client := srv.Client(local)
	svc := auth.New(client, local, store)

	var order []string
	client.OnUnauthorized(func(e *api.AuthError) {
		svc.Expire(e)
		order = append(order, "reset")
	})
	client.OnUnauthorized(func(*api.AuthError) { order = append(order, "notify") })

	require.NoError(t, local.SetToken("stale"))
	require.NoError(t, local.SetProfile(ctx, model.Profile{Username: "gus"}))
	cache.Set(store, cache.TasksKey(), []model.Task{{ID: 1, Title: "x"}})

	_, err := client.Tasks(ctx)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	assert.Equal(t, []string{"reset", "notify"}, order)
	assert.False(t, svc.SignedIn())
	p, err := local.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, store.Keys(cache.Key{}))
}
