package api

import "github.com/nhle/habitboard/internal/model"

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title     string `json:"title"`
	Date      string `json:"date,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Reminder  string `json:"reminder,omitempty"`
}

// ServerProfile is the response of GET/PUT /users/me.
type ServerProfile struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ToProfile converts the server shape, attaching locally computed stats.
func (p ServerProfile) ToProfile(stats *model.ProfileStats) model.Profile {
	return model.Profile{
		Username:  p.Username,
		Email:     p.Email,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt,
		Stats:     stats,
	}
}

// UpdateProfileRequest is the body of PUT /users/me. Only the fields the
// server understands are sent.
type UpdateProfileRequest struct {
	Email *string `json:"email,omitempty"`
	Bio   *string `json:"bio,omitempty"`
}

// Empty reports whether the request would change nothing.
func (r UpdateProfileRequest) Empty() bool {
	return r.Email == nil && r.Bio == nil
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Token string `json:"token"`
}

// errorBody is the loose error envelope some backends send.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
