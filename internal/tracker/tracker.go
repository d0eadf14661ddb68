// Package tracker keeps the last observed live state of every tracked user
// and detects offline to live transitions between polls.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/twitch-live-watcher/internal/config"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/metrics"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// ErrUserNotFound is returned by Initialize when an identifier does not
// resolve to a user.
var ErrUserNotFound = errors.New("user not found")

// ErrNoUsers is returned by Initialize when no identifiers are given.
var ErrNoUsers = errors.New("no users to track")

// ErrAlreadyInitialized is returned by a second call to Initialize.
var ErrAlreadyInitialized = errors.New("tracker already initialized")

// StreamProvider resolves users and reports their current stream.
// *twitch.Client satisfies this interface.
type StreamProvider interface {
	// ResolveUser returns nil and no error when the login does not exist.
	ResolveUser(ctx context.Context, login string) (*model.TrackedUser, error)
	// FetchStreamState returns nil and no error when the user is not live.
	FetchStreamState(ctx context.Context, user model.TrackedUser) (*model.LiveMetadata, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithFetchErrorPolicy sets how failed steady-state fetches are treated.
func WithFetchErrorPolicy(p config.FetchErrorPolicy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithNow overrides the time source used for entry bookkeeping.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker owns the tracking entries. The poll loop is its only writer;
// Snapshot and Entry may be called concurrently from other goroutines.
type Tracker struct {
	provider StreamProvider
	log      *logger.Logger
	policy   config.FetchErrorPolicy
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*model.TrackingEntry
	order   []string
}

// New creates an empty Tracker.
func New(provider StreamProvider, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		provider: provider,
		log:      log,
		policy:   config.FetchErrorOffline,
		now:      time.Now,
		entries:  make(map[string]*model.TrackingEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize resolves every identifier in order and fetches its initial
// state. Identifiers are matched case-insensitively and duplicates are
// dropped, keeping the first occurrence. A blank identifier never resolves.
// If any identifier does not resolve, or resolution fails, nothing is
// committed and the error is returned. A failed initial fetch yields Offline.
func (t *Tracker) Initialize(ctx context.Context, identifiers []string) ([]*model.TrackingEntry, error) {
	t.mu.RLock()
	initialized := len(t.order) > 0
	t.mu.RUnlock()
	if initialized {
		return nil, ErrAlreadyInitialized
	}

	if len(identifiers) == 0 {
		return nil, ErrNoUsers
	}

	seen := make(map[string]bool, len(identifiers))
	var logins []string
	for _, id := range identifiers {
		login := strings.ToLower(strings.TrimSpace(id))
		if login == "" {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, id)
		}
		if seen[login] {
			continue
		}
		seen[login] = true
		logins = append(logins, login)
	}

	users := make([]model.TrackedUser, 0, len(logins))
	for _, login := range logins {
		user, err := t.provider.ResolveUser(ctx, login)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", login, err)
		}
		if user == nil {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, login)
		}
		// Key on the requested login so lookups by CLI name keep working.
		user.Login = login
		users = append(users, *user)
		t.log.Info("Added user", "login", login, "id", user.ID)
	}

	entries := make([]*model.TrackingEntry, 0, len(users))
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		live, err := t.provider.FetchStreamState(ctx, user)
		if err != nil {
			t.log.WithUser(user.Login).Warn("Initial stream fetch failed, assuming offline", "error", err)
			metrics.FetchErrorsTotal.WithLabelValues(user.Login).Inc()
			live = nil
		}
		entries = append(entries, model.NewTrackingEntry(user, model.StateFrom(live), t.now()))
	}

	t.mu.Lock()
	for _, e := range entries {
		t.entries[e.User.Login] = e
		t.order = append(t.order, e.User.Login)
	}
	t.mu.Unlock()

	metrics.TrackedUsers.Set(float64(len(entries)))
	t.updateLiveGauge()

	return t.Entries(), nil
}

// ObserveOnce fetches the current state of the entry's user, stores it and
// reports whether the user went from offline to live.
func (t *Tracker) ObserveOnce(ctx context.Context, entry *model.TrackingEntry) (model.StreamState, bool) {
	log := t.log.WithUser(entry.User.Login)

	live, err := t.provider.FetchStreamState(ctx, entry.User)

	t.mu.Lock()
	prev := entry.State
	next := model.StateFrom(live)
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(entry.User.Login).Inc()
		if t.policy == config.FetchErrorUnchanged {
			next = prev
		} else {
			next = model.Offline()
		}
	}
	entry.Update(next, t.now())
	t.mu.Unlock()

	if err != nil {
		log.Warn("Stream fetch failed", "error", err, "policy", string(t.policy))
	}

	transitioned := !prev.IsLive() && next.IsLive()
	switch {
	case transitioned:
		meta, _ := next.Metadata()
		log.Event(ctx, model.EventStreamerOnline, "Went live",
			"title", meta.Title, "game", meta.GameName, "viewers", meta.ViewerCount)
		metrics.TransitionsTotal.WithLabelValues(entry.User.Login).Inc()
	case prev.IsLive() && !next.IsLive():
		log.Event(ctx, model.EventStreamerOffline, "Went offline")
	default:
		log.Debug("Checked", "state", next.String())
	}

	if prev.IsLive() != next.IsLive() {
		t.updateLiveGauge()
	}

	return next, transitioned
}

// Entries returns the tracked entries in insertion order. The pointers are
// the live entries; only the poll loop may pass them to ObserveOnce.
func (t *Tracker) Entries() []*model.TrackingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*model.TrackingEntry, 0, len(t.order))
	for _, login := range t.order {
		out = append(out, t.entries[login])
	}
	return out
}

// Snapshot returns copies of all entries in insertion order.
func (t *Tracker) Snapshot() []model.TrackingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.TrackingEntry, 0, len(t.order))
	for _, login := range t.order {
		out = append(out, *t.entries[login])
	}
	return out
}

// Entry returns a copy of the entry for login, matched case-insensitively.
func (t *Tracker) Entry(login string) (model.TrackingEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[strings.ToLower(login)]
	if !ok {
		return model.TrackingEntry{}, false
	}
	return *e, true
}

// Len returns the number of tracked users.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

func (t *Tracker) updateLiveGauge() {
	t.mu.RLock()
	n := 0
	for _, e := range t.entries {
		if e.State.IsLive() {
			n++
		}
	}
	t.mu.RUnlock()
	metrics.LiveUsers.Set(float64(n))
}
