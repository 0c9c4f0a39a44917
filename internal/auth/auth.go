// Package auth implements the login, register and logout flows on top of
// the API client, the local profile store and the cache.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

// ValidationError reports credentials rejected before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Client is the auth part of the API client.
type Client interface {
	Login(ctx context.Context, creds model.Credentials) (string, error)
	Register(ctx context.Context, creds model.Credentials) (string, error)
}

// Session is the local token and profile storage.
type Session interface {
	GetToken() (string, error)
	SetToken(token string) error
	GetProfile(ctx context.Context) (*model.Profile, error)
	SetProfile(ctx context.Context, p model.Profile) error
	Clear(ctx context.Context) error
}

// Service runs the session flows.
type Service struct {
	client  Client
	session Session
	store   *cache.Store
	now     func() time.Time
}

// New creates a Service.
func New(client Client, session Session, store *cache.Store) *Service {
	return &Service{client: client, session: session, store: store, now: time.Now}
}

// SignedIn reports whether a token is stored.
func (s *Service) SignedIn() bool {
	tok, err := s.session.GetToken()
	if err != nil {
		log.Printf("reading token: %v", err)
		return false
	}
	return tok != ""
}

func validate(creds model.Credentials, register bool) (model.Credentials, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return creds, &ValidationError{Field: "username", Message: "is required"}
	}
	if creds.Password == "" {
		return creds, &ValidationError{Field: "password", Message: "is required"}
	}
	if register && utf8.RuneCountInString(creds.Password) < MinPasswordLen {
		return creds, &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLen),
		}
	}
	return creds, nil
}

func (s *Service) newProfile(username string) model.Profile {
	return model.Profile{
		Username:  username,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Stats:     model.DefaultStats(),
	}
}

// Login signs in and keeps the local profile: an existing one is reused
// (renamed if the username differs), otherwise a fresh one is created.
func (s *Service) Login(ctx context.Context, creds model.Credentials) error {
	creds, err := validate(creds, false)
	if err != nil {
		return err
	}

	tok, err := s.client.Login(ctx, creds)
	if err != nil {
		return err
	}
	if err := s.session.SetToken(tok); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	s.store.Clear()

	p, err := s.session.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("reading local profile: %w", err)
	}
	switch {
	case p == nil:
		fresh := s.newProfile(creds.Username)
		p = &fresh
	case p.Username != creds.Username:
		p.Username = creds.Username
	default:
		return nil
	}
	if err := s.session.SetProfile(ctx, *p); err != nil {
		return fmt.Errorf("storing local profile: %w", err)
	}
	return nil
}

// Register creates the account, stores its token and seeds a fresh local
// profile with zero stats.
func (s *Service) Register(ctx context.Context, creds model.Credentials) error {
	creds, err := validate(creds, true)
	if err != nil {
		return err
	}

	tok, err := s.client.Register(ctx, creds)
	if err != nil {
		return err
	}
	if err := s.session.SetToken(tok); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	s.store.Clear()

	if err := s.session.SetProfile(ctx, s.newProfile(creds.Username)); err != nil {
		return fmt.Errorf("storing local profile: %w", err)
	}
	return nil
}

// Logout forgets the token, the local profile and everything cached.
func (s *Service) Logout(ctx context.Context) error {
	s.store.Clear()
	return s.session.Clear(ctx)
}

// Expire is the session reset for a token the server rejected. It has the
// shape of an api.Client unauthorized hook.
func (s *Service) Expire(authErr *api.AuthError) {
	if !s.SignedIn() {
		return
	}
	log.Printf("session rejected on %s %s (%d), signing out", authErr.Method, authErr.Path, authErr.Status)
	if err := s.Logout(context.Background()); err != nil {
		log.Printf("signing out: %v", err)
	}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
