// Package commands implements the buildwatch command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildwatch/internal/config"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"buildwatch.yaml" env:"BUILDWATCH_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Watch   WatchCmd   `cmd:"" help:"Poll all configured servers continuously and report changes"`
	Poll    PollCmd    `cmd:"" help:"Run a single poll cycle and print the changes"`
	Status  StatusCmd  `cmd:"" help:"Show the persisted build status of a server"`
	History HistoryCmd `cmd:"" help:"List recorded build status changes"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration and switches logging to its settings.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stderr, root.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger
	return cfg, nil
}

// selectServers returns the named servers, or all of them when names is empty.
func selectServers(cfg *config.Config, names []string) ([]config.ServerConfig, error) {
	if len(names) == 0 {
		return cfg.Servers, nil
	}
	out := make([]config.ServerConfig, 0, len(names))
	for _, name := range names {
		sc, ok := cfg.Server(name)
		if !ok {
			return nil, unknownServer(name)
		}
		out = append(out, sc)
	}
	return out, nil
}
