// Package model defines the data types shared by the tracker, the poll loop
// and the collaborators around them: tracked users, their stream state, and
// the event names used for logging and notification filtering.
package model

import "fmt"

// TrackedUser is a Twitch user configured for monitoring at startup.
// It is resolved once and never mutated afterwards.
type TrackedUser struct {
	Login       string `json:"login"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Name returns the display name, falling back to the login.
func (u TrackedUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Login
}

// String returns a human-readable representation of the user.
func (u TrackedUser) String() string {
	return fmt.Sprintf("TrackedUser(login=%s, id=%s)", u.Login, u.ID)
}
