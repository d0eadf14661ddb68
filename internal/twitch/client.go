// Package twitch implements the stream provider on top of the Twitch Helix
// API. It resolves logins to user records and reports whether a user is
// currently broadcasting.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/Guliveer/twitch-live-watcher/internal/config"
	"github.com/Guliveer/twitch-live-watcher/internal/constants"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/metrics"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// ErrProviderUnavailable is returned when Helix answers with a non-2xx status.
var ErrProviderUnavailable = errors.New("helix unavailable")

// Client is the Helix-backed stream provider.
type Client struct {
	helix *helix.Client
	log   *logger.Logger
	cfg   config.TwitchConfig
}

// NewClient creates a Client from the Twitch section of the configuration.
// Call Authenticate before issuing requests.
func NewClient(cfg config.TwitchConfig, log *logger.Logger) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = constants.HelixURL
	}

	hc, err := helix.NewClient(&helix.Options{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		AppAccessToken: cfg.AccessToken,
		APIBaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:     &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("creating helix client: %w", err)
	}

	return &Client{helix: hc, log: log, cfg: cfg}, nil
}

// Authenticate makes sure the client holds an app access token. A configured
// access token is used as is; otherwise one is requested through the client
// credentials flow.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.cfg.AccessToken != "" {
		c.helix.SetAppAccessToken(c.cfg.AccessToken)
		c.log.Debug("Using configured app access token")
		return nil
	}
	if c.cfg.ClientSecret == "" {
		return fmt.Errorf("no access token and no client secret configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := c.helix.RequestAppAccessToken(nil)
	if err != nil {
		return fmt.Errorf("requesting app access token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting app access token: %w (%d: %s) %s",
			ErrProviderUnavailable, resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	c.helix.SetAppAccessToken(resp.Data.AccessToken)
	c.log.Info("Obtained app access token",
		"expires_in", time.Duration(resp.Data.ExpiresIn)*time.Second)
	return nil
}

// ResolveUser looks a login up through Helix. It returns nil and no error if
// no such user exists.
func (c *Client) ResolveUser(ctx context.Context, login string) (*model.TrackedUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.helix.GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		observe("users", 0, start)
		return nil, fmt.Errorf("getting user %s: %w", login, err)
	}
	observe("users", resp.StatusCode, start)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// Helix rejects malformed logins with 400 where a well-formed unknown
		// login yields an empty list. Both mean the user does not exist.
		c.log.Debug("Helix rejected login", "login", login, "message", resp.ErrorMessage)
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("getting user %s: %w (%d: %s) %s",
			login, ErrProviderUnavailable, resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Users) == 0 {
		return nil, nil
	}

	u := resp.Data.Users[0]
	return &model.TrackedUser{
		Login:       strings.ToLower(u.Login),
		ID:          u.ID,
		DisplayName: u.DisplayName,
	}, nil
}

// FetchStreamState returns the live metadata of the user's current broadcast,
// or nil if the user is offline. Only the first stream record is considered,
// and it counts only when its type is "live".
func (c *Client) FetchStreamState(ctx context.Context, user model.TrackedUser) (*model.LiveMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.helix.GetStreams(&helix.StreamsParams{UserIDs: []string{user.ID}})
	if err != nil {
		observe("streams", 0, start)
		return nil, fmt.Errorf("getting stream of %s: %w", user.Login, err)
	}
	observe("streams", resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("getting stream of %s: %w (%d: %s) %s",
			user.Login, ErrProviderUnavailable, resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Streams) == 0 {
		return nil, nil
	}

	s := resp.Data.Streams[0]
	if s.Type != constants.StreamTypeLive {
		c.log.Debug("Ignoring non-live stream record", "login", user.Login, "type", s.Type)
		return nil, nil
	}

	return &model.LiveMetadata{
		StreamID:     s.ID,
		Title:        s.Title,
		GameName:     s.GameName,
		ViewerCount:  s.ViewerCount,
		StartedAt:    s.StartedAt,
		Language:     s.Language,
		ThumbnailURL: s.ThumbnailURL,
	}, nil
}

// observe records one Helix call. A zero status means a transport error.
func observe(endpoint string, status int, start time.Time) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	metrics.HelixRequestsTotal.WithLabelValues(endpoint, label).Inc()
	metrics.HelixRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
