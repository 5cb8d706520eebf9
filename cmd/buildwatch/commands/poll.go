package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/daemon"
	"git.home.luguber.info/inful/buildwatch/internal/eventstore"
	"git.home.luguber.info/inful/buildwatch/internal/monitor"
	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

// PollCmd implements the 'poll' command.
type PollCmd struct {
	Servers []string `arg:"" optional:"" help:"Servers to poll (default: all)"`
	Fresh   bool     `help:"Ignore the persisted state; the cycle rebuilds it without reporting changes"`
	Notify  bool     `help:"Deliver changes to the configured notification sinks"`
	JSON    bool     `name:"json" help:"Print cycle reports as JSON"`
}

func (p *PollCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	servers, err := selectServers(cfg, p.Servers)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := daemon.MonitorOptions{}
	if p.Fresh {
		loadState := false
		opts.LoadState = &loadState
	}
	if p.Notify {
		dispatcher, err := p.dispatcher(ctx, cfg.Notify, cfg.History, g.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = dispatcher.Close() }()
		opts.Listeners = []monitor.ChangeListener{dispatcher.Listener()}
	}

	reports := make([]monitor.CycleReport, 0, len(servers))
	for _, sc := range servers {
		mon, err := daemon.NewMonitor(ctx, cfg, sc, opts)
		if err != nil {
			return err
		}
		report, err := mon.Cycle(ctx)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		if !p.JSON {
			if len(report.Changes) == 0 {
				_, _ = fmt.Fprintf(g.Out, "%s: no changes\n", sc.Name)
			} else {
				_, _ = fmt.Fprintln(g.Out, notify.FormatChanges(sc.Name, report.Changes))
			}
		}
	}

	if p.JSON {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	return nil
}

func (p *PollCmd) dispatcher(ctx context.Context, nc config.NotifyConfig, hc config.HistoryConfig, logger *slog.Logger) (*notify.Dispatcher, error) {
	sinks, err := notify.SinksFromConfig(nc, logger)
	if err != nil {
		return nil, err
	}
	history, err := eventstore.Open(ctx, hc)
	if err != nil {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}
	if history != nil {
		sinks = append(sinks, eventstore.NewHistorySink(history))
	}
	return notify.NewDispatcher(nil, sinks...), nil
}
