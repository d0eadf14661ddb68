package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Webhook sends notifications via a generic HTTP webhook.
type Webhook struct {
	baseNotifier
	url        string
	method     string
	httpClient *http.Client
}

// webhookPayload is the JSON body of a POST webhook.
type webhookPayload struct {
	Event   string `json:"event"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Login   string `json:"login,omitempty"`
	URL     string `json:"url,omitempty"`
	Game    string `json:"game,omitempty"`
	Viewers int    `json:"viewers,omitempty"`
}

// Send delivers a notification via the configured webhook endpoint.
// For POST requests, the payload is sent as JSON in the body.
// For GET requests, event, title, message and login are query parameters.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	method := strings.ToUpper(w.method)

	var req *http.Request
	var err error

	switch method {
	case http.MethodGet:
		u, parseErr := url.Parse(w.url)
		if parseErr != nil {
			return fmt.Errorf("webhook: parse url: %w", parseErr)
		}
		q := u.Query()
		q.Set("event_name", string(msg.Event))
		q.Set("title", msg.Title)
		q.Set("message", msg.Body)
		if msg.User.Login != "" {
			q.Set("login", msg.User.Login)
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	case http.MethodPost:
		body, marshalErr := json.Marshal(webhookPayload{
			Event:   string(msg.Event),
			Title:   msg.Title,
			Message: msg.Body,
			Login:   msg.User.Login,
			URL:     msg.URL,
			Game:    msg.Live.GameName,
			Viewers: msg.Live.ViewerCount,
		})
		if marshalErr != nil {
			return fmt.Errorf("webhook: marshal payload: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}

	default:
		return fmt.Errorf("webhook: unsupported method %q (use GET or POST)", method)
	}

	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	return nil
}
