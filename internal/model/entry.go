package model

import "time"

// TrackingEntry pairs a tracked user with the state observed on the most
// recent poll. Entries are owned by the tracker and updated in place.
type TrackingEntry struct {
	User  TrackedUser
	State StreamState

	// LastChecked is when the state was last fetched from the provider.
	LastChecked time.Time
	// LiveSince is when the tracker first saw the current broadcast; zero
	// while offline.
	LiveSince time.Time
}

// NewTrackingEntry creates an entry with the initial state from startup.
func NewTrackingEntry(user TrackedUser, state StreamState, checkedAt time.Time) *TrackingEntry {
	e := &TrackingEntry{User: user, State: state, LastChecked: checkedAt}
	if state.IsLive() {
		e.LiveSince = checkedAt
	}
	return e
}

// Update stores a freshly observed state.
func (e *TrackingEntry) Update(state StreamState, checkedAt time.Time) {
	switch {
	case state.IsLive() && !e.State.IsLive():
		e.LiveSince = checkedAt
	case !state.IsLive():
		e.LiveSince = time.Time{}
	}
	e.State = state
	e.LastChecked = checkedAt
}
