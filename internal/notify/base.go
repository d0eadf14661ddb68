package notify

import "github.com/Guliveer/twitch-live-watcher/internal/model"

// baseNotifier provides the Name, IsEnabled and ShouldNotify methods shared
// by all providers. Embed it in concrete notifier structs.
type baseNotifier struct {
	name    string
	enabled bool
	events  []model.Event
}

func newBase(name string, events []string) baseNotifier {
	return baseNotifier{name: name, enabled: true, events: parseEvents(events)}
}

// Name returns the human-readable name of the notifier.
func (b *baseNotifier) Name() string { return b.name }

// IsEnabled reports whether this notifier is active.
func (b *baseNotifier) IsEnabled() bool { return b.enabled }

// ShouldNotify reports whether this notifier should fire for the given event.
// TEST always passes the filter.
func (b *baseNotifier) ShouldNotify(event model.Event) bool {
	return event == model.EventTest || containsEvent(b.events, event)
}
