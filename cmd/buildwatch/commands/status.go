package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildwatch/internal/daemon"
	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

// StatusCmd implements the 'status' command. It reads the persisted snapshot
// and does not contact the server.
type StatusCmd struct {
	Servers []string `arg:"" optional:"" help:"Servers to show (default: all)"`
	All     bool     `help:"List every job instead of stopping at the project limit"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	servers, err := selectServers(cfg, s.Servers)
	if err != nil {
		return err
	}

	for i, sc := range servers {
		snapshot, err := daemon.StoreFor(cfg, sc).Load(context.Background())
		if err != nil {
			return err
		}
		limit := sc.ProjectLimit()
		if s.All {
			limit = 0
		}
		if i > 0 {
			_, _ = fmt.Fprintln(g.Out)
		}
		_, _ = fmt.Fprintln(g.Out, notify.FormatStatus(sc.Name, snapshot, limit))
	}
	return nil
}
