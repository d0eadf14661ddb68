package config

import (
	"fmt"
	"time"
)

// Config is the full watcher configuration. It is loaded from an optional
// YAML file and overlaid with environment variables for secrets.
type Config struct {
	Twitch        TwitchConfig        `yaml:"twitch"`
	Watch         WatchConfig         `yaml:"watch"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// TwitchConfig holds Helix API credentials and client settings.
type TwitchConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	// AccessToken is used as the app access token when set; otherwise one is
	// requested with ClientSecret.
	AccessToken    string        `yaml:"access_token,omitempty"`
	APIBaseURL     string        `yaml:"api_base_url,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// FetchErrorPolicy decides what a failed steady-state fetch means.
type FetchErrorPolicy string

const (
	// FetchErrorOffline treats a failed fetch like "not live". A stream that
	// is still running is announced again on the next successful poll.
	FetchErrorOffline FetchErrorPolicy = "offline"
	// FetchErrorUnchanged keeps the previously observed state.
	FetchErrorUnchanged FetchErrorPolicy = "unchanged"
)

// ParseFetchErrorPolicy converts a config string to a FetchErrorPolicy.
// The empty string maps to FetchErrorOffline.
func ParseFetchErrorPolicy(s string) (FetchErrorPolicy, error) {
	switch FetchErrorPolicy(s) {
	case "", FetchErrorOffline:
		return FetchErrorOffline, nil
	case FetchErrorUnchanged:
		return FetchErrorUnchanged, nil
	default:
		return "", fmt.Errorf("unknown fetch_error_policy %q (want %q or %q)", s, FetchErrorOffline, FetchErrorUnchanged)
	}
}

// WatchConfig holds what happens around a detected transition.
type WatchConfig struct {
	OpenBrowser *bool `yaml:"open_browser,omitempty"`
	// OpenOnStart opens streams that are already live when the watcher starts.
	OpenOnStart *bool `yaml:"open_on_start,omitempty"`
	// StreamURL is the channel URL template; {login} is substituted.
	StreamURL        string           `yaml:"stream_url,omitempty"`
	FetchErrorPolicy FetchErrorPolicy `yaml:"fetch_error_policy,omitempty"`
}

// ServerConfig holds the optional status/metrics HTTP server settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
}

// NotificationsConfig holds all remote notification provider configurations.
type NotificationsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Webhook  *WebhookConfig  `yaml:"webhook,omitempty"`
	Matrix   *MatrixConfig   `yaml:"matrix,omitempty"`
	Pushover *PushoverConfig `yaml:"pushover,omitempty"`
	Gotify   *GotifyConfig   `yaml:"gotify,omitempty"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Token               string   `yaml:"token,omitempty"`
	ChatID              string   `yaml:"chat_id,omitempty"`
	Events              []string `yaml:"events"`
	DisableNotification bool     `yaml:"disable_notification"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}

// MatrixConfig holds Matrix notification settings.
type MatrixConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Homeserver  string   `yaml:"homeserver,omitempty"`
	RoomID      string   `yaml:"room_id,omitempty"`
	AccessToken string   `yaml:"access_token,omitempty"`
	Events      []string `yaml:"events"`
}

// PushoverConfig holds Pushover notification settings.
type PushoverConfig struct {
	Enabled  bool     `yaml:"enabled"`
	UserKey  string   `yaml:"user_key,omitempty"`
	APIToken string   `yaml:"api_token,omitempty"`
	Events   []string `yaml:"events"`
}

// GotifyConfig holds Gotify notification settings.
type GotifyConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url,omitempty"`
	Token   string   `yaml:"token,omitempty"`
	Events  []string `yaml:"events"`
}

// ShouldOpenBrowser reports whether transitions open a browser tab.
// Defaults to true when not specified.
func (w WatchConfig) ShouldOpenBrowser() bool {
	if w.OpenBrowser == nil {
		return true
	}
	return *w.OpenBrowser
}

// ShouldOpenOnStart reports whether already-live streams are opened at startup.
// Defaults to true when not specified.
func (w WatchConfig) ShouldOpenOnStart() bool {
	if w.OpenOnStart == nil {
		return true
	}
	return *w.OpenOnStart
}
