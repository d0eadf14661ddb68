// Package poller drives the tracker on a fixed interval and hands every
// offline to live transition to a callback.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/metrics"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// Observer is the part of the tracker the loop depends on.
// *tracker.Tracker satisfies this interface.
type Observer interface {
	Entries() []*model.TrackingEntry
	ObserveOnce(ctx context.Context, entry *model.TrackingEntry) (model.StreamState, bool)
}

// TransitionFunc is called synchronously for every offline to live
// transition, in tracking order.
type TransitionFunc func(ctx context.Context, user model.TrackedUser, live model.LiveMetadata)

// Loop polls every tracked user once per cycle and sleeps for the interval
// between cycles.
type Loop struct {
	observer     Observer
	interval     time.Duration
	onTransition TransitionFunc
	clock        clockwork.Clock
	log          *logger.Logger

	cycles atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the real clock, typically with a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// New creates a Loop. onTransition may be nil.
func New(observer Observer, interval time.Duration, onTransition TransitionFunc, log *logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		observer:     observer,
		interval:     interval,
		onTransition: onTransition,
		clock:        clockwork.NewRealClock(),
		log:          log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls until ctx is cancelled and then returns ctx.Err(). The interval
// is measured from the end of one cycle to the start of the next.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.interval):
		}
	}
}

// RunCycle observes every entry once and returns the number of transitions.
// A cancelled context stops the cycle before the next entry.
func (l *Loop) RunCycle(ctx context.Context) int {
	cycle := l.cycles.Add(1)
	start := l.clock.Now()
	l.log.Debug("Checking streams...", "cycle", cycle)

	transitions := 0
	for _, entry := range l.observer.Entries() {
		if ctx.Err() != nil {
			break
		}

		state, transitioned := l.observer.ObserveOnce(ctx, entry)
		if !transitioned {
			continue
		}
		transitions++

		if l.onTransition != nil {
			meta, _ := state.Metadata()
			l.onTransition(ctx, entry.User, meta)
		}
	}

	metrics.PollCyclesTotal.Inc()
	metrics.PollCycleDuration.Observe(l.clock.Since(start).Seconds())

	return transitions
}

// Cycles returns the number of cycles started so far.
func (l *Loop) Cycles() int64 {
	return l.cycles.Load()
}
