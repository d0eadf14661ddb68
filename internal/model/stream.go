package model

import (
	"fmt"
	"time"
)

// LiveMetadata describes a running broadcast as reported by the provider.
// The tracker never interprets these fields; they are passed through to
// notifiers and the status server.
type LiveMetadata struct {
	StreamID     string    `json:"stream_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	GameName     string    `json:"game_name,omitempty"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	Language     string    `json:"language,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}

// StreamState is either Offline or Live with metadata attached.
// The zero value is Offline.
type StreamState struct {
	live *LiveMetadata
}

// Offline returns the offline state.
func Offline() StreamState {
	return StreamState{}
}

// Live returns a live state carrying a copy of meta.
func Live(meta LiveMetadata) StreamState {
	return StreamState{live: &meta}
}

// StateFrom maps a provider result to a state: nil means offline.
func StateFrom(meta *LiveMetadata) StreamState {
	if meta == nil {
		return Offline()
	}
	return Live(*meta)
}

// IsLive reports whether the state is Live.
func (s StreamState) IsLive() bool {
	return s.live != nil
}

// Metadata returns the live metadata and true, or a zero value and false
// when offline.
func (s StreamState) Metadata() (LiveMetadata, bool) {
	if s.live == nil {
		return LiveMetadata{}, false
	}
	return *s.live, true
}

// String returns "offline" or a short summary of the broadcast.
func (s StreamState) String() string {
	if s.live == nil {
		return "offline"
	}
	return fmt.Sprintf("live(title=%s, viewers=%d)", s.live.Title, s.live.ViewerCount)
}

// MarshalText lets the state be rendered as a plain field in JSON responses.
func (s StreamState) MarshalText() ([]byte, error) {
	if s.live == nil {
		return []byte("offline"), nil
	}
	return []byte("live"), nil
}
