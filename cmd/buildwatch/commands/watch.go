package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/buildwatch/internal/daemon"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	NoReload bool `name:"no-reload" help:"Do not reload the configuration file when it changes"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := root.Config
	if w.NoReload {
		configPath = ""
	}
	g.Logger.Info("Starting watch mode", "servers", len(cfg.Servers), "interval", cfg.Monitor.Interval)
	return daemon.New(cfg, configPath).Run(ctx)
}
