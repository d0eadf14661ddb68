// Package config handles loading, parsing, and validating the YAML
// configuration of the watcher. Secrets may be supplied through environment
// variables (optionally from a .env file) instead of the file itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/twitch-live-watcher/internal/constants"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

// DefaultConfigPath is read when no -config flag is given. A missing file at
// this path is not an error.
const DefaultConfigPath = "config.yaml"

// DefaultDotEnvPath is the .env file loaded before environment overrides.
const DefaultDotEnvPath = ".env"

// Load reads the configuration at path, applies defaults and environment
// overrides, and validates the result. If path is empty the default path is
// tried, and when it does not exist the configuration is built from defaults
// and the environment alone.
func Load(path string) (*Config, error) {
	return load(path, Validate)
}

// LoadNotifications is Load for commands that never call Helix, such as
// sending a test notification. Twitch credentials are not required.
func LoadNotifications(path string) (*Config, error) {
	return load(path, validateSettings)
}

func load(path string, validate func(*Config) error) (*Config, error) {
	var cfg Config

	optional := path == ""
	if optional {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case optional && errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := loadDotEnv(DefaultDotEnvPath); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv exports the variables of a .env file without overwriting ones
// already present in the environment. A missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Twitch.APIBaseURL == "" {
		cfg.Twitch.APIBaseURL = constants.HelixURL
	}
	if cfg.Twitch.RequestTimeout <= 0 {
		cfg.Twitch.RequestTimeout = constants.DefaultHTTPTimeout
	}

	if cfg.Watch.StreamURL == "" {
		cfg.Watch.StreamURL = constants.DefaultStreamURL
	}
	if cfg.Watch.FetchErrorPolicy == "" {
		cfg.Watch.FetchErrorPolicy = FetchErrorOffline
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = constants.DefaultStatusAddr
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}

	if w := cfg.Notifications.Webhook; w != nil && w.Method == "" {
		w.Method = "POST"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyEnvOverrides overlays environment variables for credentials, the log
// level and notifier secrets. Notifier variables only apply to providers
// that are present in the file.
func applyEnvOverrides(cfg *Config) {
	setFromEnv(&cfg.Twitch.ClientID, "TWITCH_CLIENT_ID")
	setFromEnv(&cfg.Twitch.ClientSecret, "TWITCH_CLIENT_SECRET")
	setFromEnv(&cfg.Twitch.AccessToken, "TWITCH_ACCESS_TOKEN")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")

	n := &cfg.Notifications

	if n.Telegram != nil {
		setFromEnv(&n.Telegram.Token, "TELEGRAM_TOKEN")
		setFromEnv(&n.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	}

	if n.Discord != nil {
		setFromEnv(&n.Discord.WebhookURL, "DISCORD_WEBHOOK")
	}

	if n.Webhook != nil {
		setFromEnv(&n.Webhook.Endpoint, "WEBHOOK_URL")
	}

	if n.Matrix != nil {
		setFromEnv(&n.Matrix.Homeserver, "MATRIX_HOMESERVER")
		setFromEnv(&n.Matrix.RoomID, "MATRIX_ROOM_ID")
		setFromEnv(&n.Matrix.AccessToken, "MATRIX_ACCESS_TOKEN")
	}

	if n.Pushover != nil {
		setFromEnv(&n.Pushover.APIToken, "PUSHOVER_TOKEN")
		setFromEnv(&n.Pushover.UserKey, "PUSHOVER_USER_KEY")
	}

	if n.Gotify != nil {
		setFromEnv(&n.Gotify.URL, "GOTIFY_URL")
		setFromEnv(&n.Gotify.Token, "GOTIFY_TOKEN")
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *Config) error {
	if cfg.Twitch.ClientID == "" {
		return fmt.Errorf("twitch.client_id is required (or set TWITCH_CLIENT_ID)")
	}
	if cfg.Twitch.AccessToken == "" && cfg.Twitch.ClientSecret == "" {
		return fmt.Errorf("one of twitch.access_token or twitch.client_secret is required (or set TWITCH_ACCESS_TOKEN / TWITCH_CLIENT_SECRET)")
	}
	return validateSettings(cfg)
}

// validateSettings checks everything except the Twitch credentials.
func validateSettings(cfg *Config) error {
	if _, err := ParseFetchErrorPolicy(string(cfg.Watch.FetchErrorPolicy)); err != nil {
		return err
	}

	if !strings.Contains(cfg.Watch.StreamURL, "{login}") {
		return fmt.Errorf("watch.stream_url %q must contain {login}", cfg.Watch.StreamURL)
	}

	n := cfg.Notifications

	if n.Telegram != nil && n.Telegram.Enabled {
		if n.Telegram.Token == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram enabled but token or chat_id not set (use env vars TELEGRAM_TOKEN and TELEGRAM_CHAT_ID)")
		}
		if err := validateEvents("telegram", n.Telegram.Events); err != nil {
			return err
		}
	}

	if n.Discord != nil && n.Discord.Enabled {
		if n.Discord.WebhookURL == "" {
			return fmt.Errorf("discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK)")
		}
		if err := validateEvents("discord", n.Discord.Events); err != nil {
			return err
		}
	}

	if n.Webhook != nil && n.Webhook.Enabled {
		if n.Webhook.Endpoint == "" {
			return fmt.Errorf("webhook enabled but endpoint not set (use env var WEBHOOK_URL)")
		}
		if err := validateEvents("webhook", n.Webhook.Events); err != nil {
			return err
		}
	}

	if n.Matrix != nil && n.Matrix.Enabled {
		if n.Matrix.Homeserver == "" || n.Matrix.RoomID == "" || n.Matrix.AccessToken == "" {
			return fmt.Errorf("matrix enabled but homeserver, room_id or access_token not set")
		}
		if err := validateEvents("matrix", n.Matrix.Events); err != nil {
			return err
		}
	}

	if n.Pushover != nil && n.Pushover.Enabled {
		if n.Pushover.APIToken == "" || n.Pushover.UserKey == "" {
			return fmt.Errorf("pushover enabled but api_token or user_key not set (use env vars PUSHOVER_TOKEN and PUSHOVER_USER_KEY)")
		}
		if err := validateEvents("pushover", n.Pushover.Events); err != nil {
			return err
		}
	}

	if n.Gotify != nil && n.Gotify.Enabled {
		if n.Gotify.URL == "" || n.Gotify.Token == "" {
			return fmt.Errorf("gotify enabled but url or token not set (use env vars GOTIFY_URL and GOTIFY_TOKEN)")
		}
		if err := validateEvents("gotify", n.Gotify.Events); err != nil {
			return err
		}
	}

	return nil
}

func validateEvents(provider string, events []string) error {
	for _, e := range events {
		if model.ParseEvent(e) == "" {
			return fmt.Errorf("%s: unknown event %q", provider, e)
		}
	}
	return nil
}
