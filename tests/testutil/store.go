package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/habitboard/internal/credential"
	"github.com/nhle/habitboard/internal/localstore"
	"github.com/nhle/habitboard/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestLocalStore builds a Local Profile Store over an in-memory
// database and an in-memory keyring.
func NewTestLocalStore(t *testing.T) *localstore.Store {
	t.Helper()

	vault := credential.NewVault(keyring.NewArrayKeyring(nil))
	return localstore.New(vault, NewTestStore(t))
}
