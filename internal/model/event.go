package model

// Event names a watcher event for logging and notification filtering.
type Event string

// Events emitted by the watcher.
const (
	EventStreamerOnline  Event = "STREAMER_ONLINE"
	EventStreamerOffline Event = "STREAMER_OFFLINE"
	EventStreamOpened    Event = "STREAM_OPENED"
	EventTest            Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventStreamerOnline,
		EventStreamerOffline,
		EventStreamOpened,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Returns empty string if invalid.
func ParseEvent(s string) Event {
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}
