package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/mobsite/internal/config"
)

// Environment overrides for the logging section of the configuration file.
const (
	EnvLogLevel  = "MOBSITE_LOG_LEVEL"
	EnvLogFormat = "MOBSITE_LOG_FORMAT"
)

// Global carries state shared by every subcommand.
type Global struct {
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mobsite.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Targets TargetsCmd `cmd:"" help:"Print every asset path and its output path without rendering"`
	History HistoryCmd `cmd:"" help:"Show recent builds from the build history"`
	Daemon  DaemonCmd  `cmd:"" help:"Rebuild periodically and on configuration changes"`
}

var logLevel = new(slog.LevelVar)

// AfterApply runs after flag parsing; logs go to stderr as text until a
// configuration file selects otherwise.
func (c *CLI) AfterApply() error {
	level, _ := resolveLogLevel(c.Verbose, "")
	logLevel.Set(level)
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, resolveLogFormat(""))))
	return nil
}

// loadConfig loads the configuration file and applies its logging section.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	level, _ := resolveLogLevel(root.Verbose, cfg.Logging.Level)
	logLevel.Set(level)
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, resolveLogFormat(cfg.Logging.Format))))
	return cfg, nil
}

// resolveLogLevel applies the precedence --verbose, MOBSITE_LOG_LEVEL, then
// the configured level. The second result names the source that decided.
func resolveLogLevel(verbose bool, configured config.LogLevel) (slog.Level, string) {
	if verbose {
		return slog.LevelDebug, "flag"
	}
	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		return slogLevel(config.NormalizeLogLevel(env)), "env"
	}
	if configured != "" {
		return slogLevel(configured), "config"
	}
	return slog.LevelInfo, "default"
}

// resolveLogFormat prefers MOBSITE_LOG_FORMAT over the configured format.
// Unknown values fall back to text.
func resolveLogFormat(configured config.LogFormat) config.LogFormat {
	if env := strings.TrimSpace(os.Getenv(EnvLogFormat)); env != "" {
		return config.NormalizeLogFormat(env)
	}
	if configured != "" {
		return configured
	}
	return config.LogFormatText
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogHandler returns a JSON handler or a tint text handler, colored only
// when f is a terminal.
func newLogHandler(f *os.File, format config.LogFormat) slog.Handler {
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: logLevel})
	}
	return tint.NewHandler(colorable.NewColorable(f), &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(f.Fd()),
	})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
