// Package notify delivers "went live" notifications. The browser notifier
// opens the channel page locally; remote providers (Telegram, Discord,
// Webhook, Matrix, Pushover, Gotify) are filtered by event.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/twitch-live-watcher/internal/config"
	"github.com/Guliveer/twitch-live-watcher/internal/constants"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/metrics"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
	"github.com/Guliveer/twitch-live-watcher/internal/workerpool"
)

// maxParallelSends bounds concurrent remote sends per message.
const maxParallelSends = 4

// Message is what a notifier delivers.
type Message struct {
	Event model.Event
	User  model.TrackedUser
	Live  model.LiveMetadata
	Title string
	Body  string
	// URL is the channel page of the user.
	URL string
}

// Notifier is the interface that all notification providers must implement.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
	IsEnabled() bool
	ShouldNotify(event model.Event) bool
}

// Dispatcher fans a transition out to the browser notifier and every enabled
// remote notifier whose event filter matches.
type Dispatcher struct {
	browser     *Browser
	notifiers   []Notifier
	streamURL   string
	sendTimeout time.Duration
	log         *logger.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from the configuration. browser may be
// nil to disable opening tabs.
func NewDispatcher(cfg *config.Config, browser *Browser, log *logger.Logger) *Dispatcher {
	streamURL := cfg.Watch.StreamURL
	if streamURL == "" {
		streamURL = constants.DefaultStreamURL
	}

	return &Dispatcher{
		browser:     browser,
		notifiers:   newRemoteNotifiers(cfg.Notifications),
		streamURL:   streamURL,
		sendTimeout: constants.DefaultNotifyTimeout,
		log:         log,
	}
}

func newRemoteNotifiers(cfg config.NotificationsConfig) []Notifier {
	var notifiers []Notifier

	httpClient := &http.Client{
		Timeout: constants.DefaultNotifyTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		notifiers = append(notifiers, &Telegram{
			baseNotifier:        newBase("Telegram", cfg.Telegram.Events),
			apiURL:              telegramAPIURL,
			token:               cfg.Telegram.Token,
			chatID:              cfg.Telegram.ChatID,
			disableNotification: cfg.Telegram.DisableNotification,
			httpClient:          httpClient,
		})
	}

	if cfg.Discord != nil && cfg.Discord.Enabled {
		notifiers = append(notifiers, &Discord{
			baseNotifier: newBase("Discord", cfg.Discord.Events),
			webhookURL:   cfg.Discord.WebhookURL,
			httpClient:   httpClient,
		})
	}

	if cfg.Webhook != nil && cfg.Webhook.Enabled {
		method := cfg.Webhook.Method
		if method == "" {
			method = http.MethodPost
		}
		notifiers = append(notifiers, &Webhook{
			baseNotifier: newBase("Webhook", cfg.Webhook.Events),
			url:          cfg.Webhook.Endpoint,
			method:       method,
			httpClient:   httpClient,
		})
	}

	if cfg.Matrix != nil && cfg.Matrix.Enabled {
		notifiers = append(notifiers, &Matrix{
			baseNotifier: newBase("Matrix", cfg.Matrix.Events),
			homeserver:   cfg.Matrix.Homeserver,
			accessToken:  cfg.Matrix.AccessToken,
			roomID:       cfg.Matrix.RoomID,
			httpClient:   httpClient,
		})
	}

	if cfg.Pushover != nil && cfg.Pushover.Enabled {
		notifiers = append(notifiers, &Pushover{
			baseNotifier: newBase("Pushover", cfg.Pushover.Events),
			apiURL:       pushoverAPIURL,
			token:        cfg.Pushover.APIToken,
			userKey:      cfg.Pushover.UserKey,
			httpClient:   httpClient,
		})
	}

	if cfg.Gotify != nil && cfg.Gotify.Enabled {
		notifiers = append(notifiers, &Gotify{
			baseNotifier: newBase("Gotify", cfg.Gotify.Events),
			url:          cfg.Gotify.URL,
			token:        cfg.Gotify.Token,
			httpClient:   httpClient,
		})
	}

	return notifiers
}

// StreamURL returns the channel URL of user.
func (d *Dispatcher) StreamURL(user model.TrackedUser) string {
	return strings.ReplaceAll(d.streamURL, "{login}", user.Login)
}

// Notify handles an offline to live transition. It matches
// poller.TransitionFunc. The browser tab is opened synchronously; remote
// sends run in the background. Failures are logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, user model.TrackedUser, live model.LiveMetadata) {
	d.deliver(ctx, d.buildMessage(model.EventStreamerOnline, user, live, "is live"))
}

// NotifyAlreadyLive announces a user that was live when the watcher started.
func (d *Dispatcher) NotifyAlreadyLive(ctx context.Context, user model.TrackedUser, live model.LiveMetadata) {
	d.deliver(ctx, d.buildMessage(model.EventStreamerOnline, user, live, "is already live"))
}

// SendTest sends a TEST event, bypassing the browser.
func (d *Dispatcher) SendTest(ctx context.Context) {
	msg := Message{
		Event: model.EventTest,
		Title: "Twitch Live Watcher",
		Body:  "Test notification",
	}
	d.dispatchRemote(ctx, msg)
}

func (d *Dispatcher) buildMessage(event model.Event, user model.TrackedUser, live model.LiveMetadata, verb string) Message {
	url := d.StreamURL(user)

	var body strings.Builder
	if live.Title != "" {
		body.WriteString(live.Title)
		body.WriteString("\n")
	}
	if live.GameName != "" {
		fmt.Fprintf(&body, "Playing %s, %d viewers\n", live.GameName, live.ViewerCount)
	}
	body.WriteString(url)

	return Message{
		Event: event,
		User:  user,
		Live:  live,
		Title: fmt.Sprintf("%s %s", user.Name(), verb),
		Body:  body.String(),
		URL:   url,
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if d.browser != nil && d.browser.IsEnabled() {
		log := d.log.WithUser(msg.User.Login)
		if err := d.browser.Send(ctx, msg); err != nil {
			log.Warn("Failed to open stream", "url", msg.URL, "error", err)
			metrics.NotificationsTotal.WithLabelValues(d.browser.Name(), "error").Inc()
		} else {
			log.Event(ctx, model.EventStreamOpened, "Opened stream", "url", msg.URL)
			metrics.NotificationsTotal.WithLabelValues(d.browser.Name(), "success").Inc()
		}
	}

	d.dispatchRemote(ctx, msg)
}

// dispatchRemote sends msg to every matching remote notifier in the
// background, at most maxParallelSends at a time, each with its own timeout.
func (d *Dispatcher) dispatchRemote(ctx context.Context, msg Message) {
	var targets []Notifier
	for _, n := range d.notifiers {
		if n.IsEnabled() && n.ShouldNotify(msg.Event) {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = workerpool.ForEach(sendCtx, targets, maxParallelSends, func(ctx context.Context, n Notifier) error {
			ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			if err := n.Send(ctx, msg); err != nil {
				d.log.Warn("Notification send failed",
					"provider", n.Name(),
					"event", string(msg.Event),
					"error", err,
				)
				metrics.NotificationsTotal.WithLabelValues(n.Name(), "error").Inc()
				return err
			}
			metrics.NotificationsTotal.WithLabelValues(n.Name(), "success").Inc()
			return nil
		})
	}()
}

// Wait blocks until all in-flight remote sends have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// HasNotifiers reports whether any remote notifiers are configured.
func (d *Dispatcher) HasNotifiers() bool {
	return len(d.notifiers) > 0
}

// parseEvents converts event names to model.Event values. Unknown names are
// skipped. An empty list means STREAMER_ONLINE only.
func parseEvents(names []string) []model.Event {
	if len(names) == 0 {
		return []model.Event{model.EventStreamerOnline}
	}
	events := make([]model.Event, 0, len(names))
	for _, name := range names {
		e := model.ParseEvent(name)
		if e != "" {
			events = append(events, e)
		}
	}
	return events
}

func containsEvent(events []model.Event, event model.Event) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}
