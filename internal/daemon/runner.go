package daemon

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/jenkins"
	"git.home.luguber.info/inful/buildwatch/internal/metrics"
	"git.home.luguber.info/inful/buildwatch/internal/monitor"
	"git.home.luguber.info/inful/buildwatch/internal/retry"
	"git.home.luguber.info/inful/buildwatch/internal/scheduler"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

// MonitorOptions carries the collaborators shared by all monitors of a process.
type MonitorOptions struct {
	Recorder  metrics.Recorder
	Listeners []monitor.ChangeListener
	// LoadState overrides monitor.load_state when set.
	LoadState *bool
}

// ClientFor builds the Jenkins client of one configured server.
func ClientFor(sc config.ServerConfig) (*jenkins.Client, error) {
	return jenkins.NewClient(jenkins.Options{
		URL:               sc.URL,
		Username:          sc.Username,
		APIToken:          sc.APIToken,
		VerifyCertificate: sc.VerifiesCertificate(),
		Timeout:           sc.Timeout,
		Retry:             retry.FromConfig(sc.Retry),
	})
}

// StoreFor returns the snapshot store of one configured server.
func StoreFor(cfg *config.Config, sc config.ServerConfig) *state.JSONStore {
	return state.NewJSONStore(cfg.DataDir, jenkins.ServerName(sc.URL))
}

// NewMonitor wires client, store and options into a monitor for sc.
func NewMonitor(ctx context.Context, cfg *config.Config, sc config.ServerConfig, opts MonitorOptions) (*monitor.Monitor, error) {
	client, err := ClientFor(sc)
	if err != nil {
		return nil, err
	}
	loadState := cfg.Monitor.LoadsState()
	if opts.LoadState != nil {
		loadState = *opts.LoadState
	}
	monOpts := []monitor.Option{
		monitor.WithFilterPrefix(sc.FilterPrefix),
		monitor.WithMaxProjects(sc.ProjectLimit()),
		monitor.WithLoadState(loadState),
		monitor.WithRecorder(opts.Recorder),
	}
	for _, l := range opts.Listeners {
		monOpts = append(monOpts, monitor.WithListener(l))
	}
	return monitor.New(ctx, sc.Name, client, StoreFor(cfg, sc), monOpts...)
}

// serverRunner is a monitor together with its schedule.
type serverRunner struct {
	config    config.ServerConfig
	hash      string
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
}

func startRunner(ctx context.Context, cfg *config.Config, sc config.ServerConfig, opts MonitorOptions) (*serverRunner, error) {
	mon, err := NewMonitor(ctx, cfg, sc, opts)
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(sc.Name, cfg.Monitor.Interval, func(ctx context.Context) error {
		_, err := mon.Cycle(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", sc.Name, err)
	}
	r := &serverRunner{config: sc, hash: cfg.ServerSnapshot(sc), monitor: mon, scheduler: sched}
	if err := sched.Start(ctx); err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("start %s: %w", sc.Name, err)
	}
	return r, nil
}

func (r *serverRunner) stop() error {
	return r.scheduler.Shutdown()
}
