package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// Matrix sends notifications via the Matrix client-server API.
type Matrix struct {
	baseNotifier
	homeserver  string
	accessToken string
	roomID      string
	httpClient  *http.Client
	txnCounter  atomic.Int64
}

// Send puts a message into the configured Matrix room. A homeserver without
// a scheme is reached over https.
func (m *Matrix) Send(ctx context.Context, msg Message) error {
	base := m.homeserver
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	encodedRoomID := url.PathEscape(m.roomID)
	txnID := fmt.Sprintf("m%d.%d", time.Now().UnixNano(), m.txnCounter.Add(1))

	apiURL := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		strings.TrimRight(base, "/"), encodedRoomID, txnID)

	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}
	payload := map[string]string{
		"msgtype": "m.text",
		"body":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("matrix: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("matrix: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("matrix: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("matrix: unexpected status %d", resp.StatusCode)
	}

	return nil
}
