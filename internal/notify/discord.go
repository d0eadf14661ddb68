package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// twitchPurple is the embed color of live announcements.
const twitchPurple = 6570404

// Discord sends notifications via a Discord webhook.
type Discord struct {
	baseNotifier
	webhookURL string
	httpClient *http.Client
}

// Send posts an embed message to the configured Discord webhook.
func (d *Discord) Send(ctx context.Context, msg Message) error {
	embed := map[string]any{
		"title":       msg.Title,
		"description": msg.Body,
		"color":       twitchPurple,
	}
	if msg.URL != "" {
		embed["url"] = msg.URL
	}
	if !msg.Live.StartedAt.IsZero() {
		embed["timestamp"] = msg.Live.StartedAt.UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"username": "Twitch Live Watcher",
		"embeds":   []map[string]any{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}

	return nil
}
