// Package localstore keeps the auth token and the last known user profile
// on disk so the client can render something before the server answers.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nhle/habitboard/internal/credential"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/store"
)

// Store is the Local Profile Store: token in the keyring, profile in
// SQLite. All reads are synchronous and never block on the network.
type Store struct {
	vault *credential.Vault
	db    store.Store
}

// New combines a credential vault and a persistence store.
func New(vault *credential.Vault, db store.Store) *Store {
	return &Store{vault: vault, db: db}
}

// Token implements api.TokenSource. Read failures are logged and treated
// as "no token".
func (s *Store) Token() string {
	tok, err := s.GetToken()
	if err != nil {
		log.Printf("reading auth token: %v", err)
		return ""
	}
	return tok
}

// GetToken returns the stored bearer token, or "".
func (s *Store) GetToken() (string, error) {
	return s.vault.Get(credential.TokenKey)
}

// SetToken stores the bearer token.
func (s *Store) SetToken(token string) error {
	return s.vault.Set(credential.TokenKey, token)
}

// RemoveToken deletes the bearer token.
func (s *Store) RemoveToken() error {
	return s.vault.Delete(credential.TokenKey)
}

// GetProfile returns the cached profile, or nil when none is stored.
func (s *Store) GetProfile(ctx context.Context) (*model.Profile, error) {
	p, err := s.db.GetProfile(ctx)
	if errors.Is(err, store.ErrNoProfile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetProfile replaces the cached profile.
func (s *Store) SetProfile(ctx context.Context, p model.Profile) error {
	return s.db.SetProfile(ctx, p)
}

// UpdateProfile merges patch into the cached profile. It never creates a
// profile: with nothing stored it is a no-op.
func (s *Store) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	_, err := s.db.UpdateProfile(ctx, patch)
	return err
}

// RemoveProfile deletes the cached profile.
func (s *Store) RemoveProfile(ctx context.Context) error {
	return s.db.RemoveProfile(ctx)
}

// Setting returns a persisted UI setting, or "".
func (s *Store) Setting(ctx context.Context, key string) string {
	v, err := s.db.GetSetting(ctx, key)
	if err != nil {
		log.Printf("reading setting %s: %v", key, err)
		return ""
	}
	return v
}

// SaveSetting persists a UI setting.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	return s.db.SetSetting(ctx, key, value)
}

// Clear removes the token and the profile. Both are attempted even when
// the first fails.
func (s *Store) Clear(ctx context.Context) error {
	tokErr := s.RemoveToken()
	profErr := s.RemoveProfile(ctx)
	if err := errors.Join(tokErr, profErr); err != nil {
		return fmt.Errorf("clearing local session: %w", err)
	}
	return nil
}
