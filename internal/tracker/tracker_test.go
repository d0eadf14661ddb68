package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-live-watcher/internal/config"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

var errUnavailable = errors.New("provider unavailable")

// fetchResult is one scripted answer of the fake provider.
type fetchResult struct {
	live *model.LiveMetadata
	err  error
}

func online(title string) fetchResult {
	return fetchResult{live: &model.LiveMetadata{Title: title}}
}

func offline() fetchResult { return fetchResult{} }

func failed() fetchResult { return fetchResult{err: errUnavailable} }

// fakeProvider answers ResolveUser from a fixed set of known logins and
// FetchStreamState from a per-user script. When a script runs out the last
// answer repeats.
type fakeProvider struct {
	mu         sync.Mutex
	known      map[string]bool
	resolveErr error
	scripts    map[string][]fetchResult
	resolved   []string
	fetched    []string
}

func newFakeProvider(logins ...string) *fakeProvider {
	p := &fakeProvider{known: map[string]bool{}, scripts: map[string][]fetchResult{}}
	for _, l := range logins {
		p.known[l] = true
	}
	return p
}

func (p *fakeProvider) script(login string, results ...fetchResult) *fakeProvider {
	p.scripts[login] = results
	return p
}

func (p *fakeProvider) ResolveUser(_ context.Context, login string) (*model.TrackedUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, login)
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	if !p.known[login] {
		return nil, nil
	}
	return &model.TrackedUser{Login: login, ID: "id-" + login, DisplayName: strings.ToUpper(login)}, nil
}

func (p *fakeProvider) FetchStreamState(_ context.Context, user model.TrackedUser) (*model.LiveMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, user.Login)
	script := p.scripts[user.Login]
	if len(script) == 0 {
		return nil, nil
	}
	r := script[0]
	if len(script) > 1 {
		p.scripts[user.Login] = script[1:]
	}
	return r.live, r.err
}

func newTracker(p StreamProvider, opts ...Option) *Tracker {
	return New(p, logger.Discard(), opts...)
}

func TestInitialize(t *testing.T) {
	p := newFakeProvider("alice", "bob").
		script("alice", offline()).
		script("bob", online("already on"))
	tr := newTracker(p)

	entries, err := tr.Initialize(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alice", entries[0].User.Login)
	assert.Equal(t, "id-alice", entries[0].User.ID)
	assert.False(t, entries[0].State.IsLive())
	assert.True(t, entries[0].LiveSince.IsZero())

	assert.Equal(t, "bob", entries[1].User.Login)
	assert.True(t, entries[1].State.IsLive())
	assert.False(t, entries[1].LiveSince.IsZero())

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, []string{"alice", "bob"}, p.resolved)
	assert.Equal(t, []string{"alice", "bob"}, p.fetched)
}

func TestInitializeCollapsesDuplicates(t *testing.T) {
	p := newFakeProvider("alice", "bob")
	tr := newTracker(p)

	entries, err := tr.Initialize(context.Background(), []string{"Alice", "bob", "ALICE", "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].User.Login)
	assert.Equal(t, "bob", entries[1].User.Login)
	assert.Equal(t, []string{"alice", "bob"}, p.resolved)
}

func TestInitializeFailsFastOnUnknownUser(t *testing.T) {
	p := newFakeProvider("alice", "carol")
	tr := newTracker(p)

	entries, err := tr.Initialize(context.Background(), []string{"alice", "ghost", "carol"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Contains(t, err.Error(), "ghost")
	assert.Nil(t, entries)

	assert.Equal(t, 0, tr.Len(), "no partial tracking set is committed")
	assert.Empty(t, tr.Snapshot())
	assert.NotContains(t, p.resolved, "carol", "users after the unknown one are not resolved")
	assert.Empty(t, p.fetched, "no initial fetch happens before every user resolved")
}

func TestInitializeRejectsBlankIdentifiers(t *testing.T) {
	tests := map[string][]string{
		"only blanks":       {"", "  "},
		"blank after valid": {"alice", "\t"},
	}
	for name, ids := range tests {
		t.Run(name, func(t *testing.T) {
			p := newFakeProvider("alice")
			tr := newTracker(p)

			entries, err := tr.Initialize(context.Background(), ids)
			assert.ErrorIs(t, err, ErrUserNotFound)
			assert.Nil(t, entries)
			assert.Equal(t, 0, tr.Len())
			assert.Empty(t, p.resolved)
			assert.Empty(t, p.fetched)
		})
	}
}

func TestInitializeRequiresIdentifiers(t *testing.T) {
	tr := newTracker(newFakeProvider("alice"))

	_, err := tr.Initialize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUsers)
	assert.Equal(t, 0, tr.Len())
}

func TestInitializeResolveTransportErrorIsFatal(t *testing.T) {
	p := newFakeProvider("alice")
	p.resolveErr = errUnavailable
	tr := newTracker(p)

	_, err := tr.Initialize(context.Background(), []string{"alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnavailable)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 0, tr.Len())
}

func TestInitializeFetchErrorYieldsOffline(t *testing.T) {
	p := newFakeProvider("alice").script("alice", failed())
	tr := newTracker(p)

	entries, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].State.IsLive())
}

func TestInitializeTwice(t *testing.T) {
	tr := newTracker(newFakeProvider("alice"))
	_, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)

	_, err = tr.Initialize(context.Background(), []string{"alice"})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

// observeSeries initializes a single user from the first result and then
// observes the remaining ones, returning the transition flag of each poll.
func observeSeries(t *testing.T, opts []Option, results ...fetchResult) []bool {
	t.Helper()
	p := newFakeProvider("alice").script("alice", results...)
	tr := newTracker(p, opts...)

	entries, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)

	flags := make([]bool, 0, len(results)-1)
	for range results[1:] {
		_, transitioned := tr.ObserveOnce(context.Background(), entries[0])
		flags = append(flags, transitioned)
	}
	return flags
}

func TestObserveOnceTransitions(t *testing.T) {
	tests := []struct {
		name    string
		results []fetchResult
		want    []bool
	}{
		{
			name:    "offline to live",
			results: []fetchResult{offline(), online("a")},
			want:    []bool{true},
		},
		{
			name:    "live stays live",
			results: []fetchResult{online("a"), online("b"), online("c")},
			want:    []bool{false, false},
		},
		{
			name:    "live to offline",
			results: []fetchResult{online("a"), offline()},
			want:    []bool{false},
		},
		{
			name:    "offline stays offline",
			results: []fetchResult{offline(), offline(), offline()},
			want:    []bool{false, false},
		},
		{
			name:    "flap fires on polls two and four",
			results: []fetchResult{offline(), online("a"), offline(), online("b")},
			want:    []bool{true, false, true},
		},
		{
			name:    "already live at startup does not fire",
			results: []fetchResult{online("a"), online("a")},
			want:    []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, observeSeries(t, nil, tt.results...))
		})
	}
}

func TestObserveOnceReturnsAndStoresNewState(t *testing.T) {
	p := newFakeProvider("alice").script("alice", offline(), online("first"))
	tr := newTracker(p)

	entries, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)

	state, transitioned := tr.ObserveOnce(context.Background(), entries[0])
	assert.True(t, transitioned)
	meta, ok := state.Metadata()
	require.True(t, ok)
	assert.Equal(t, "first", meta.Title)

	stored, ok := tr.Entry("ALICE")
	require.True(t, ok)
	assert.True(t, stored.State.IsLive())
	assert.Equal(t, state, stored.State)
}

func TestFetchErrorPolicyOffline(t *testing.T) {
	// live, error, live: the error counts as offline, so the second live
	// reading is announced again.
	flags := observeSeries(t, nil, online("a"), failed(), online("a"))
	assert.Equal(t, []bool{false, true}, flags)
}

func TestFetchErrorPolicyUnchanged(t *testing.T) {
	opts := []Option{WithFetchErrorPolicy(config.FetchErrorUnchanged)}

	flags := observeSeries(t, opts, online("a"), failed(), online("a"))
	assert.Equal(t, []bool{false, false}, flags)

	flags = observeSeries(t, opts, offline(), failed(), online("a"))
	assert.Equal(t, []bool{false, true}, flags)
}

func TestObserveOnceBookkeeping(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	now := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	p := newFakeProvider("alice").script("alice", offline(), online("a"), online("a"), offline())
	tr := newTracker(p, WithNow(now))

	entries, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)
	e := entries[0]
	assert.Equal(t, base.Add(time.Minute), e.LastChecked)

	tr.ObserveOnce(context.Background(), e)
	liveSince := e.LiveSince
	assert.Equal(t, base.Add(2*time.Minute), liveSince)

	tr.ObserveOnce(context.Background(), e)
	assert.Equal(t, liveSince, e.LiveSince, "LiveSince is kept while the stream runs")
	assert.Equal(t, base.Add(3*time.Minute), e.LastChecked)

	tr.ObserveOnce(context.Background(), e)
	assert.True(t, e.LiveSince.IsZero())
}

func TestDeterminism(t *testing.T) {
	run := func() []string {
		p := newFakeProvider("alice", "bob", "carol").
			script("alice", offline(), online("a"), offline(), online("a")).
			script("bob", online("b"), offline(), online("b"), online("b")).
			script("carol", offline(), failed(), online("c"), online("c"))
		tr := newTracker(p)
		entries, err := tr.Initialize(context.Background(), []string{"alice", "bob", "carol"})
		require.NoError(t, err)

		var fired []string
		for cycle := 1; cycle <= 3; cycle++ {
			for _, e := range entries {
				if _, ok := tr.ObserveOnce(context.Background(), e); ok {
					fired = append(fired, fmt.Sprintf("%d:%s", cycle, e.User.Login))
				}
			}
		}
		return fired
	}

	first := run()
	assert.Equal(t, []string{"1:alice", "2:bob", "2:carol", "3:alice"}, first)
	assert.Equal(t, first, run())
}

func TestSnapshotIsCopy(t *testing.T) {
	p := newFakeProvider("alice").script("alice", offline(), online("a"))
	tr := newTracker(p)
	entries, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)

	snap := tr.Snapshot()
	tr.ObserveOnce(context.Background(), entries[0])

	assert.False(t, snap[0].State.IsLive())
	assert.True(t, tr.Snapshot()[0].State.IsLive())

	_, ok := tr.Entry("nobody")
	assert.False(t, ok)
}

func TestConcurrentSnapshotDuringObserve(t *testing.T) {
	p := newFakeProvider("alice", "bob").
		script("alice", offline(), online("a"), offline()).
		script("bob", online("b"), offline(), online("b"))
	tr := newTracker(p)
	entries, err := tr.Initialize(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = tr.Snapshot()
			}
		}
	}()

	for i := 0; i < 50; i++ {
		for _, e := range entries {
			tr.ObserveOnce(context.Background(), e)
		}
	}
	close(done)
	wg.Wait()
}
