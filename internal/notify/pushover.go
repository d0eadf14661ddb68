package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const pushoverAPIURL = "https://api.pushover.net/1/messages.json"

// Pushover sends notifications via the Pushover API.
type Pushover struct {
	baseNotifier
	apiURL     string
	token      string
	userKey    string
	httpClient *http.Client
}

// Send posts a notification to the Pushover API.
func (p *Pushover) Send(ctx context.Context, msg Message) error {
	form := url.Values{
		"token":   {p.token},
		"user":    {p.userKey},
		"title":   {msg.Title},
		"message": {msg.Body},
	}
	if msg.URL != "" {
		form.Set("url", msg.URL)
		form.Set("url_title", "Open stream")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushover: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("pushover: unexpected status %d", resp.StatusCode)
	}

	return nil
}
