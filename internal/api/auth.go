package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/habitboard/internal/model"
)

// ErrNoToken is returned when an auth endpoint answers 2xx without a token.
var ErrNoToken = errors.New("server returned no token")

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (string, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, creds model.Credentials) (string, error) {
	return c.authenticate(ctx, "/auth/register", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds model.Credentials) (string, error) {
	var resp AuthResponse
	if err := c.post(ctx, path, creds, &resp); err != nil {
		return "", fmt.Errorf("authenticating %s: %w", creds.Username, err)
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}
