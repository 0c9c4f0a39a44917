package authform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword(ModeLogin, ""))
	assert.NoError(t, ValidatePassword(ModeLogin, "abc"))
	assert.Error(t, ValidatePassword(ModeRegister, "abc"))
	assert.Error(t, ValidatePassword(ModeRegister, "ÿÿÿÿÿ"))
	assert.NoError(t, ValidatePassword(ModeRegister, "secret"))
}

func TestStartShowsMessage(t *testing.T) {
	m := New(80, 24)
	m.Start("Session expired. Sign in again.")
	assert.Contains(t, m.View(), "Session expired")
	assert.Equal(t, ModeLogin, m.fb.mode)
}
