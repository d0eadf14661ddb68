// Package constants defines Twitch endpoints, stream type tags, and the
// default timeout/interval values used throughout the watcher.
package constants

import "time"

const (
	// TwitchURL is the base Twitch web URL.
	TwitchURL = "https://www.twitch.tv"
	// HelixURL is the Twitch Helix API base URL.
	HelixURL = "https://api.twitch.tv/helix"
	// DefaultStreamURL is the channel URL template; {login} is replaced
	// with the tracked user's login.
	DefaultStreamURL = TwitchURL + "/{login}"
)

// StreamTypeLive is the Helix stream "type" value of a running broadcast.
// Any other value (including the empty string Twitch returns on errors) is
// not treated as live.
const StreamTypeLive = "live"

const (
	// DefaultHTTPTimeout bounds a single Helix request. The core loop has no
	// timeout of its own; this is the only bound on a provider call.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultNotifyTimeout bounds a single remote notification send.
	DefaultNotifyTimeout = 5 * time.Second
	// DefaultGracefulShutdownTimeout is the timeout for graceful HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
	// ForcedExitTimeout is how long main waits after a signal before exiting hard.
	ForcedExitTimeout = 10 * time.Second
)

// DefaultStatusAddr is the listen address of the optional status server.
const DefaultStatusAddr = ":8080"
