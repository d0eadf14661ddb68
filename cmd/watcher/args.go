package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Process exit codes.
const (
	exitOK          = 0
	exitUsage       = 1
	exitBadInterval = 2
	exitUnknownUser = 3
	exitStartup     = 4
)

const usageLine = "Usage: watcher [flags] <interval> <user> [user...]"

const banner = `
╔══════════════════════════════════════════════════╗
║              Twitch Live Watcher                 ║
╚══════════════════════════════════════════════════╝
`

// options is the parsed command line.
type options struct {
	configPath string
	logLevel   string
	noColor    bool
	testNotify bool

	interval time.Duration
	users    []string
}

// exitError carries the exit code of a command line problem.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// exitCode maps an error from parseArgs to a process exit code.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

func newFlagSet(out io.Writer) (*flag.FlagSet, *options) {
	opts := &options{}
	fs := flag.NewFlagSet("watcher", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file (default config.yaml if present)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config and LOG_LEVEL)")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output (overrides TTY detection)")
	fs.BoolVar(&opts.testNotify, "test-notify", false, "Send a TEST notification to every configured notifier and exit")
	fs.Usage = func() {
		fmt.Fprintln(out, usageLine)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  <interval>  seconds to wait between poll cycles (positive integer)")
		fmt.Fprintln(out, "  <user>      Twitch login to watch; repeat for more users")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
	return fs, opts
}

// parseArgs parses flags followed by the interval and at least one user,
// except with -test-notify, where positional arguments are ignored.
// flag.ErrHelp is returned unchanged when -h is given.
func parseArgs(args []string, out io.Writer) (*options, error) {
	fs, opts := newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &exitError{code: exitUsage, msg: err.Error()}
	}

	// A test notification needs no interval or users.
	if opts.testNotify {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return nil, &exitError{code: exitUsage, msg: "You need to specify an interval and at least one user."}
	}

	// 32-bit seconds keep the interval far below the time.Duration range.
	secs, err := strconv.ParseInt(rest[0], 10, 32)
	if err != nil {
		return nil, &exitError{code: exitBadInterval, msg: "First argument has to be a valid integer."}
	}
	if secs <= 0 {
		return nil, &exitError{code: exitBadInterval, msg: "Interval has to be a positive number of seconds."}
	}

	opts.interval = time.Duration(secs) * time.Second
	for _, u := range rest[1:] {
		if strings.TrimSpace(u) == "" {
			return nil, &exitError{code: exitUnknownUser, msg: "User names must not be empty."}
		}
	}

	opts.users = rest[1:]
	return opts, nil
}

// printErrorAndUsage writes the banner, the message and the usage line.
func printErrorAndUsage(out io.Writer, msg string) {
	fmt.Fprint(out, banner)
	fmt.Fprintln(out, msg)
	fmt.Fprintln(out)
	fmt.Fprintln(out, usageLine)
	fmt.Fprintln(out)
}
