package localstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/tests/testutil"
)

func TestStore_Token(t *testing.T) {
	s := testutil.NewTestLocalStore(t)

	assert.Empty(t, s.Token())

	require.NoError(t, s.SetToken("t-1"))
	assert.Equal(t, "t-1", s.Token())

	require.NoError(t, s.RemoveToken())
	assert.Empty(t, s.Token())
}

func TestStore_UpdateProfileNeverCreates(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestLocalStore(t)

	bio := "hello"
	require.NoError(t, s.UpdateProfile(ctx, model.ProfilePatch{Bio: &bio}))

	p, err := s.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.SetProfile(ctx, model.Profile{Username: "carol"}))
	require.NoError(t, s.UpdateProfile(ctx, model.ProfilePatch{Bio: &bio}))

	p, err = s.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "carol", p.Username)
	assert.Equal(t, "hello", p.Bio)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestLocalStore(t)

	require.NoError(t, s.SetToken("tok"))
	require.NoError(t, s.SetProfile(ctx, model.Profile{Username: "dave"}))

	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, s.Token())
	p, err := s.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}
