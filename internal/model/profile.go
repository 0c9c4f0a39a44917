package model

import "time"

// ProfileStats are task counts computed on the client from the task cache.
// They are never sent to the server.
type ProfileStats struct {
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	PendingTasks   int `json:"pendingTasks"`
}

// Profile is the signed-in user as cached locally.
type Profile struct {
	Username  string        `json:"username"`
	Email     string        `json:"email,omitempty"`
	Bio       string        `json:"bio,omitempty"`
	CreatedAt string        `json:"createdAt"`
	Stats     *ProfileStats `json:"stats,omitempty"`
}

// CreatedTime parses CreatedAt. The zero time is returned when the server
// sent something unparseable.
func (p Profile) CreatedTime() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, DateLayout} {
		if t, err := time.Parse(layout, p.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Email *string
	Bio   *string
	Stats *ProfileStats
}

// Apply returns a copy of p with the patch applied.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Bio != nil {
		p.Bio = *pp.Bio
	}
	if pp.Stats != nil {
		s := *pp.Stats
		p.Stats = &s
	}
	return p
}

// DefaultStats is the zero-valued stats block attached to new profiles.
func DefaultStats() *ProfileStats {
	return &ProfileStats{}
}

// Credentials are submitted to the login and register endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
