package notify

import (
	"context"
	"fmt"

	"github.com/pkg/browser"

	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// OpenFunc opens a URL. browser.OpenURL is the default.
type OpenFunc func(url string) error

// Browser opens the channel page of a user who went live in the default web
// browser.
type Browser struct {
	baseNotifier
	open OpenFunc
}

// NewBrowser creates a Browser notifier. A nil open uses the system browser.
func NewBrowser(open OpenFunc) *Browser {
	if open == nil {
		open = browser.OpenURL
	}
	return &Browser{
		baseNotifier: baseNotifier{
			name:    "Browser",
			enabled: true,
			events:  []model.Event{model.EventStreamerOnline},
		},
		open: open,
	}
}

// Send opens msg.URL.
func (b *Browser) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.URL == "" {
		return fmt.Errorf("browser: empty url")
	}
	if err := b.open(msg.URL); err != nil {
		return fmt.Errorf("browser: open %s: %w", msg.URL, err)
	}
	return nil
}
