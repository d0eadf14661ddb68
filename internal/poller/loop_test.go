package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
	"github.com/Guliveer/twitch-live-watcher/internal/tracker"
)

// cycleProvider answers FetchStreamState from a table indexed by user and
// fetch number. Index 0 is the initial fetch done by Initialize.
type cycleProvider struct {
	mu     sync.Mutex
	states map[string][]bool
	calls  map[string]int
}

func newCycleProvider(states map[string][]bool) *cycleProvider {
	return &cycleProvider{states: states, calls: map[string]int{}}
}

func (p *cycleProvider) ResolveUser(_ context.Context, login string) (*model.TrackedUser, error) {
	if _, ok := p.states[login]; !ok {
		return nil, nil
	}
	return &model.TrackedUser{Login: login, ID: "id-" + login}, nil
}

func (p *cycleProvider) FetchStreamState(_ context.Context, user model.TrackedUser) (*model.LiveMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.states[user.Login]
	i := p.calls[user.Login]
	p.calls[user.Login]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	if !seq[i] {
		return nil, nil
	}
	return &model.LiveMetadata{Title: user.Login + " stream"}, nil
}

func (p *cycleProvider) fetches(login string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[login]
}

// recorder collects transition callbacks.
type recorder struct {
	mu    sync.Mutex
	users []string
}

func (r *recorder) onTransition(_ context.Context, user model.TrackedUser, live model.LiveMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user.Login+":"+live.Title)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.users
	r.users = nil
	return out
}

func newTrackedLoop(t *testing.T, p tracker.StreamProvider, logins []string, interval time.Duration, rec *recorder, opts ...Option) *Loop {
	t.Helper()
	tr := tracker.New(p, logger.Discard())
	_, err := tr.Initialize(context.Background(), logins)
	require.NoError(t, err)
	return New(tr, interval, rec.onTransition, logger.Discard(), opts...)
}

func TestRunCycleAliceBob(t *testing.T) {
	p := newCycleProvider(map[string][]bool{
		"alice": {false, true, true, false},
		"bob":   {false, false, true, true},
	})
	rec := &recorder{}
	loop := newTrackedLoop(t, p, []string{"alice", "bob"}, time.Second, rec)
	ctx := context.Background()

	assert.Equal(t, 1, loop.RunCycle(ctx))
	assert.Equal(t, []string{"alice:alice stream"}, rec.take())

	assert.Equal(t, 1, loop.RunCycle(ctx))
	assert.Equal(t, []string{"bob:bob stream"}, rec.take())

	assert.Equal(t, 0, loop.RunCycle(ctx))
	assert.Empty(t, rec.take())

	assert.Equal(t, int64(3), loop.Cycles())
}

func TestRunCycleOrder(t *testing.T) {
	p := newCycleProvider(map[string][]bool{
		"carol": {false, true},
		"alice": {false, true},
		"bob":   {false, true},
	})
	rec := &recorder{}
	loop := newTrackedLoop(t, p, []string{"carol", "alice", "bob"}, time.Second, rec)

	assert.Equal(t, 3, loop.RunCycle(context.Background()))
	assert.Equal(t, []string{"carol:carol stream", "alice:alice stream", "bob:bob stream"}, rec.take())
}

func TestRunCycleNilCallback(t *testing.T) {
	p := newCycleProvider(map[string][]bool{"alice": {false, true}})
	tr := tracker.New(p, logger.Discard())
	_, err := tr.Initialize(context.Background(), []string{"alice"})
	require.NoError(t, err)

	loop := New(tr, time.Second, nil, logger.Discard())
	assert.Equal(t, 1, loop.RunCycle(context.Background()))
}

func TestRunCycleStopsOnCancelledContext(t *testing.T) {
	p := newCycleProvider(map[string][]bool{"alice": {false, true}, "bob": {false, true}})
	rec := &recorder{}
	loop := newTrackedLoop(t, p, []string{"alice", "bob"}, time.Second, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, loop.RunCycle(ctx))
	assert.Equal(t, 1, p.fetches("alice"), "only the initial fetch happened")
}

func TestRunSleepsAfterEachCycle(t *testing.T) {
	p := newCycleProvider(map[string][]bool{
		"alice": {false, true, true, false},
		"bob":   {false, false, true, true},
	})
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	interval := 30 * time.Second
	loop := newTrackedLoop(t, p, []string{"alice", "bob"}, interval, rec, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	// Cycle 1 runs immediately, then the loop sleeps.
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int64(1), loop.Cycles())
	assert.Equal(t, []string{"alice:alice stream"}, rec.take())

	// Short of the interval nothing happens.
	clock.Advance(interval - time.Second)
	assert.Equal(t, int64(1), loop.Cycles())
	assert.Equal(t, 2, p.fetches("alice"))

	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int64(2), loop.Cycles())
	assert.Equal(t, []string{"bob:bob stream"}, rec.take())

	clock.Advance(interval)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int64(3), loop.Cycles())
	assert.Empty(t, rec.take())

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsImmediatelyOnCancelledContext(t *testing.T) {
	p := newCycleProvider(map[string][]bool{"alice": {false}})
	loop := newTrackedLoop(t, p, []string{"alice"}, time.Second, &recorder{}, WithClock(clockwork.NewFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
	assert.Equal(t, int64(0), loop.Cycles())
}

func TestRunDeterministic(t *testing.T) {
	run := func() []string {
		p := newCycleProvider(map[string][]bool{
			"alice": {false, true, false, true},
			"bob":   {true, false, true, true},
		})
		rec := &recorder{}
		loop := newTrackedLoop(t, p, []string{"alice", "bob"}, time.Second, rec)
		var all []string
		for i := 0; i < 3; i++ {
			loop.RunCycle(context.Background())
			all = append(all, rec.take()...)
			all = append(all, "|")
		}
		return all
	}

	want := []string{"alice:alice stream", "|", "bob:bob stream", "|", "alice:alice stream", "|"}
	assert.Equal(t, want, run())
	assert.Equal(t, run(), run())
}
