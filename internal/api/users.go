package api

import (
	"context"
	"fmt"
)

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (ServerProfile, error) {
	var p ServerProfile
	if err := c.get(ctx, "/users/me", &p); err != nil {
		return ServerProfile{}, fmt.Errorf("fetching profile: %w", err)
	}
	return p, nil
}

// UpdateMe updates email and/or bio.
func (c *Client) UpdateMe(ctx context.Context, req UpdateProfileRequest) (ServerProfile, error) {
	var p ServerProfile
	if err := c.put(ctx, "/users/me", req, &p); err != nil {
		return ServerProfile{}, fmt.Errorf("updating profile: %w", err)
	}
	return p, nil
}
