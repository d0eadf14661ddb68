// Package logger provides structured logging with colored console output,
// optional file output, and per-user prefixing using log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Guliveer/twitch-live-watcher/internal/model"
)

var eventEmoji = map[model.Event]string{
	model.EventStreamerOnline:  "🟢",
	model.EventStreamerOffline: "⚫",
	model.EventStreamOpened:    "📺",
	model.EventTest:            "🧪",
}

// ANSI color codes for terminal output.
const (
	colorReset     = "\033[0m"
	colorRed       = "\033[31m"
	colorGreen     = "\033[32m"
	colorYellow    = "\033[33m"
	colorLightBlue = "\033[94m"
	colorMagenta   = "\033[35m"
	colorCyan      = "\033[36m"
	colorGray      = "\033[90m"
)

// coloredAttrKeys maps slog attribute keys to ANSI color codes for value highlighting.
var coloredAttrKeys = map[string]string{
	"user":  colorMagenta,
	"login": colorMagenta,
	"game":  colorLightBlue,
	"url":   colorCyan,
}

// Config holds logger configuration options.
type Config struct {
	Level     slog.Level
	FileLevel slog.Level
	Colored   bool
	// LogDir enables an additional plain-text file handler when set.
	LogDir string
	// Prefix is printed in brackets before every console message.
	Prefix string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		FileLevel: slog.LevelDebug,
		Colored:   true,
	}
}

// Logger wraps slog.Logger with a prefix scope and event helpers.
type Logger struct {
	*slog.Logger
	cfg Config
}

// Setup creates a new Logger based on the provided configuration.
// It sets up console and optional file handlers.
func Setup(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handlers := []slog.Handler{newColorHandler(out, cfg.Level, cfg.Colored, cfg.Prefix)}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
		}

		logFile, err := os.OpenFile(
			filepath.Join(cfg.LogDir, "watcher.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}

		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: cfg.FileLevel,
		}))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	return &Logger{Logger: slog.New(handler), cfg: cfg}, nil
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithUser returns a Logger whose console lines are prefixed with the login
// and whose records carry a "user" attribute.
func (l *Logger) WithUser(login string) *Logger {
	newCfg := l.cfg
	newCfg.Prefix = login
	return &Logger{
		Logger: slog.New(l.Logger.Handler().WithAttrs([]slog.Attr{slog.String("user", login)})),
		cfg:    newCfg,
	}
}

// Event logs a message at INFO level tagged with the event name.
// If the event has a mapped emoji, it is prepended to the log message.
func (l *Logger) Event(ctx context.Context, event model.Event, msg string, args ...any) {
	if emoji, ok := eventEmoji[event]; ok {
		msg = emoji + " " + msg
	}
	l.Logger.InfoContext(ctx, msg, append(args, "event", string(event))...)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type colorHandler struct {
	mu      *sync.Mutex
	writer  io.Writer
	level   slog.Level
	colored bool
	prefix  string
	attrs   []slog.Attr
}

func newColorHandler(w io.Writer, level slog.Level, colored bool, prefix string) *colorHandler {
	return &colorHandler{
		mu:      &sync.Mutex{},
		writer:  w,
		level:   level,
		colored: colored,
		prefix:  prefix,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := record.Time.Format("02/01/06 15:04:05")
	levelStr := record.Level.String()

	prefix := ""
	if h.prefix != "" {
		prefix = fmt.Sprintf("[%s] ", h.prefix)
	}

	if h.colored {
		fmt.Fprintf(h.writer, "%s%s - %s%s%s - %s%s",
			colorGray, timeStr,
			h.levelColor(record.Level), levelStr, colorReset,
			prefix, record.Message,
		)
	} else {
		fmt.Fprintf(h.writer, "%s - %s - %s%s", timeStr, levelStr, prefix, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(a)
		return true
	})

	fmt.Fprintln(h.writer)
	return nil
}

// writeAttr must be called with mu held.
func (h *colorHandler) writeAttr(a slog.Attr) {
	if a.Key == "user" && h.prefix != "" {
		return // already shown as prefix
	}
	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(h.writer, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(h.writer, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(copyAttrs(h.attrs), attrs...)
	for _, a := range attrs {
		if a.Key == "user" {
			clone.prefix = a.Value.String()
		}
	}
	return &clone
}

func (h *colorHandler) WithGroup(_ string) slog.Handler {
	clone := *h
	clone.attrs = copyAttrs(h.attrs)
	return &clone
}

func copyAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	cp := make([]slog.Attr, len(attrs))
	copy(cp, attrs)
	return cp
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (handler *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handler *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handler *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (handler *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
