// Command watcher polls Twitch for a set of users and opens a user's channel
// in the browser when they go live. Optional remote notifications and a
// status server are configured through a YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Guliveer/twitch-live-watcher/internal/config"
	"github.com/Guliveer/twitch-live-watcher/internal/constants"
	"github.com/Guliveer/twitch-live-watcher/internal/logger"
	"github.com/Guliveer/twitch-live-watcher/internal/model"
	"github.com/Guliveer/twitch-live-watcher/internal/notify"
	"github.com/Guliveer/twitch-live-watcher/internal/poller"
	"github.com/Guliveer/twitch-live-watcher/internal/server"
	"github.com/Guliveer/twitch-live-watcher/internal/tracker"
	"github.com/Guliveer/twitch-live-watcher/internal/twitch"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		printErrorAndUsage(stderr, err.Error())
		return exitCode(err)
	}

	load := config.Load
	if opts.testNotify {
		load = config.LoadNotifications
	}
	cfg, err := load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitStartup
	}

	log, err := setupLogger(cfg, opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to setup logger: %v\n", err)
		return exitStartup
	}

	fmt.Fprint(stdout, banner)
	log.Info("🚀 Starting Twitch Live Watcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		time.AfterFunc(constants.ForcedExitTimeout, func() {
			log.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(exitStartup)
		})
	}()

	var browser *notify.Browser
	if cfg.Watch.ShouldOpenBrowser() {
		browser = notify.NewBrowser(nil)
	}
	dispatcher := notify.NewDispatcher(cfg, browser, log)

	if opts.testNotify {
		if !dispatcher.HasNotifiers() {
			log.Warn("No remote notifiers configured")
			return exitStartup
		}
		log.Info("Sending test notification")
		dispatcher.SendTest(ctx)
		dispatcher.Wait()
		return exitOK
	}

	client, err := twitch.NewClient(cfg.Twitch, log)
	if err != nil {
		log.Error("Failed to create Twitch client", "error", err)
		return exitStartup
	}
	if err := client.Authenticate(ctx); err != nil {
		log.Error("Failed to authenticate with Twitch", "error", err)
		return exitStartup
	}

	tr := tracker.New(client, log, tracker.WithFetchErrorPolicy(cfg.Watch.FetchErrorPolicy))
	loop, err := startup(ctx, log, tr, dispatcher, opts, cfg.Watch.ShouldOpenOnStart())
	switch {
	case errors.Is(err, tracker.ErrUserNotFound):
		log.Error("User doesn't exist", "error", err)
		return exitUnknownUser
	case err != nil:
		log.Error("Failed to initialize tracked users", "error", err)
		return exitStartup
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})

	if cfg.Server.Enabled {
		status := server.New(cfg.Server.Addr, tr, dispatcher.StreamURL, log)
		g.Go(func() error {
			return status.Run(gctx)
		})
		log.Info("🌐 Status server started", "addr", cfg.Server.Addr)
	}

	err = g.Wait()
	dispatcher.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Watcher stopped", "error", err)
		return exitStartup
	}

	log.Info("👋 Shutdown complete. Goodbye!")
	return exitOK
}

func setupLogger(cfg *config.Config, opts *options, stdout io.Writer) (*logger.Logger, error) {
	level := logger.ParseLevel(cfg.Log.Level)
	if opts.logLevel != "" {
		level = logger.ParseLevel(opts.logLevel)
	}

	colored := !opts.noColor && os.Getenv("NO_COLOR") == ""
	if f, ok := stdout.(*os.File); ok {
		colored = colored && term.IsTerminal(int(f.Fd()))
	} else {
		colored = false
	}

	return logger.Setup(logger.Config{
		Level:     level,
		FileLevel: slog.LevelDebug,
		Colored:   colored,
		LogDir:    cfg.Log.Dir,
		Output:    stdout,
	})
}

// announcer receives startup and transition announcements.
// *notify.Dispatcher satisfies this interface.
type announcer interface {
	Notify(ctx context.Context, user model.TrackedUser, live model.LiveMetadata)
	NotifyAlreadyLive(ctx context.Context, user model.TrackedUser, live model.LiveMetadata)
}

// startup tracks the users, announces the ones already live when openOnStart
// is set, and returns the poll loop ready to run. Nothing is polled before
// the loop runs.
func startup(ctx context.Context, log *logger.Logger, tr *tracker.Tracker, a announcer, opts *options, openOnStart bool) (*poller.Loop, error) {
	entries, err := tr.Initialize(ctx, opts.users)
	if err != nil {
		return nil, err
	}

	log.Info("Using interval", "seconds", int(opts.interval/time.Second), "users", len(entries))

	if openOnStart {
		openAlreadyLive(ctx, log, a, entries)
	}

	return poller.New(tr, opts.interval, a.Notify, log), nil
}

// openAlreadyLive announces and opens every user that was live at startup.
// This is not a transition and does not reach the poll loop.
func openAlreadyLive(ctx context.Context, log *logger.Logger, a announcer, entries []*model.TrackingEntry) {
	for _, e := range entries {
		meta, live := e.State.Metadata()
		if !live {
			continue
		}
		log.WithUser(e.User.Login).Event(ctx, model.EventStreamerOnline, "Already live, opening stream",
			"title", meta.Title, "game", meta.GameName)
		a.NotifyAlreadyLive(ctx, e.User, meta)
	}
}
