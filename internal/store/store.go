package store

import (
	"context"
	"errors"

	"github.com/nhle/habitboard/internal/model"
)

// ErrNoProfile is returned by GetProfile when nothing has been stored yet.
var ErrNoProfile = errors.New("no profile stored")

// Store defines the durable local persistence used when the server is
// unreachable or has not answered yet.
type Store interface {
	// === Profile ===

	GetProfile(ctx context.Context) (*model.Profile, error)
	SetProfile(ctx context.Context, p model.Profile) error
	UpdateProfile(ctx context.Context, patch model.ProfilePatch) (bool, error)
	RemoveProfile(ctx context.Context) error

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}
