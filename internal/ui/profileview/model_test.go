package profileview

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
)

func TestChangesOnlyCarriesEditedFields(t *testing.T) {
	p := &model.Profile{Username: "ann", Email: "ann@example.com", Bio: "hi"}

	req := Changes(p, "ann@example.com", " hello ")
	assert.Nil(t, req.Email)
	require.NotNil(t, req.Bio)
	assert.Equal(t, "hello", *req.Bio)

	assert.True(t, Changes(p, " ann@example.com", "hi").Empty())
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail(""))
	assert.NoError(t, ValidateEmail("ann@example.com"))
	assert.Error(t, ValidateEmail("not an email"))
}

func TestViewShowsProfileAndStats(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	assert.Contains(t, m.View(), "Loading profile")

	created := time.Now().Add(-72 * time.Hour).UTC().Format(time.RFC3339)
	m.SetProfile(&model.Profile{
		Username:  "ann",
		Email:     "ann@example.com",
		CreatedAt: created,
		Stats:     &model.ProfileStats{TotalTasks: 4, CompletedTasks: 1, PendingTasks: 3},
	}, nil)

	out := m.View()
	assert.Contains(t, out, "ann@example.com")
	assert.Contains(t, out, "3 days ago")
	assert.Contains(t, out, "25%")
	assert.Contains(t, out, "not set")
}

func TestViewShowsError(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetProfile(nil, errors.New("offline"))
	assert.Contains(t, m.View(), "offline")
}

func TestEditOpensForm(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.False(t, m.Editing(), "nothing to edit without a profile")

	m.SetProfile(&model.Profile{Username: "ann", Bio: "hi"}, nil)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.True(t, m.Editing())
	assert.Equal(t, "hi", m.fb.bio)
}
