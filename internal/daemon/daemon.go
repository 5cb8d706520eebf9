// Package daemon runs one monitor per configured Jenkins server, serves status
// and metrics over HTTP and applies configuration changes while running.
package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/eventstore"
	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/metrics"
	"git.home.luguber.info/inful/buildwatch/internal/monitor"
	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

const shutdownTimeout = 30 * time.Second

// Daemon supervises the monitors of all configured servers.
type Daemon struct {
	configPath string
	registry   *prom.Registry
	recorder   *metrics.PrometheusRecorder
	startTime  time.Time

	reconcileMu sync.Mutex // serializes reconcile and shutdown

	mu         sync.RWMutex
	cfg        *config.Config
	runners    map[string]*serverRunner
	dispatcher *notify.Dispatcher
	history    eventstore.Store
	httpServer *http.Server
	watcher    *ConfigWatcher
	closed     bool
}

// New creates a daemon for cfg. configPath enables hot reload when non-empty.
func New(cfg *config.Config, configPath string) *Daemon {
	registry := prom.NewRegistry()
	return &Daemon{
		configPath: configPath,
		registry:   registry,
		recorder:   metrics.NewPrometheusRecorder(registry),
		cfg:        cfg,
		runners:    map[string]*serverRunner{},
	}
}

// Config returns the configuration currently applied.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Start opens the change history, builds the notification sinks, starts one
// monitor per server and the HTTP listener. A server whose first cycle fails keeps
// being polled; a server whose state cannot be loaded fails Start.
func (d *Daemon) Start(ctx context.Context) error {
	d.startTime = time.Now()
	cfg := d.Config()

	history, err := eventstore.Open(ctx, cfg.History)
	if err != nil {
		return err
	}
	sinks, err := notify.SinksFromConfig(cfg.Notify, slog.Default())
	if err != nil {
		if history != nil {
			_ = history.Close()
		}
		return err
	}
	if history != nil {
		sinks = append(sinks, eventstore.NewHistorySink(history))
	}

	d.mu.Lock()
	d.history = history
	d.dispatcher = notify.NewDispatcher(d.recorder, sinks...)
	d.mu.Unlock()

	slog.InfoContext(ctx, "Starting buildwatch daemon",
		slog.Int("servers", len(cfg.Servers)),
		slog.Any("sinks", d.dispatcher.Sinks()))

	if err := d.reconcile(ctx, cfg); err != nil {
		d.shutdown(ctx)
		return err
	}

	if cfg.HTTP.Addr != "" {
		if err := d.startHTTP(cfg.HTTP.Addr); err != nil {
			d.shutdown(ctx)
			return err
		}
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			slog.WarnContext(ctx, "Config hot reload disabled", logfields.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			slog.WarnContext(ctx, "Config hot reload disabled", logfields.Error(err))
		} else {
			d.mu.Lock()
			d.watcher = watcher
			d.mu.Unlock()
		}
	}
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	d.shutdown(stopCtx)
	return nil
}

// Reload applies cfg: monitors of removed servers stop, new servers start and
// servers whose settings changed restart. Servers that fail to start are
// reported and retried on the next reload.
func (d *Daemon) Reload(ctx context.Context, cfg *config.Config) error {
	current := d.Config()
	if cfg.DataDir != current.DataDir {
		slog.WarnContext(ctx, "data_dir changes require a restart", logfields.Path(cfg.DataDir))
	}
	if cfg.HTTP.Addr != current.HTTP.Addr {
		slog.WarnContext(ctx, "http.addr changes require a restart")
	}
	err := d.reconcile(ctx, cfg)
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return err
}

// reconcile stops and starts runners so that they match cfg. First cycles run
// outside d.mu so readers are not blocked by slow servers.
func (d *Daemon) reconcile(ctx context.Context, cfg *config.Config) error {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()

	wanted := map[string]config.ServerConfig{}
	for _, sc := range cfg.Servers {
		wanted[sc.Name] = sc
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	var removed []*serverRunner
	for name, r := range d.runners {
		sc, ok := wanted[name]
		if ok && cfg.ServerSnapshot(sc) == r.hash {
			continue
		}
		removed = append(removed, r)
		delete(d.runners, name)
	}
	var pending []config.ServerConfig
	for _, sc := range cfg.Servers {
		if _, running := d.runners[sc.Name]; !running {
			pending = append(pending, sc)
		}
	}
	opts := MonitorOptions{Recorder: d.recorder, Listeners: []monitor.ChangeListener{d.dispatcher.Listener()}}
	d.mu.Unlock()

	for _, r := range removed {
		slog.InfoContext(ctx, "Stopping monitor", logfields.Server(r.config.Name))
		if err := r.stop(); err != nil {
			slog.WarnContext(ctx, "Failed to stop monitor", logfields.Server(r.config.Name), logfields.Error(err))
		}
	}

	var errs []error
	for _, sc := range pending {
		slog.InfoContext(ctx, "Starting monitor", logfields.Server(sc.Name), logfields.URL(sc.URL))
		r, err := startRunner(ctx, cfg, sc, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("start monitor %s: %w", sc.Name, err))
			continue
		}
		d.mu.Lock()
		d.runners[sc.Name] = r
		d.mu.Unlock()
	}
	return stderrors.Join(errs...)
}

// ServerNames returns the names of the running monitors in order.
func (d *Daemon) ServerNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.runners))
	for name := range d.runners {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Monitor returns the monitor of server name.
func (d *Daemon) Monitor(name string) (*monitor.Monitor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.runners[name]
	if !ok {
		return nil, false
	}
	return r.monitor, true
}

func (d *Daemon) shutdown(ctx context.Context) {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()

	d.mu.Lock()
	d.closed = true
	watcher, httpServer, dispatcher := d.watcher, d.httpServer, d.dispatcher
	runners := d.runners
	d.watcher, d.httpServer, d.dispatcher, d.history = nil, nil, nil, nil
	d.runners = map[string]*serverRunner{}
	d.mu.Unlock()

	if watcher != nil {
		_ = watcher.Stop(ctx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.WarnContext(ctx, "HTTP server shutdown", logfields.Error(err))
		}
	}
	for name, r := range runners {
		if err := r.stop(); err != nil {
			slog.WarnContext(ctx, "Failed to stop monitor", logfields.Server(name), logfields.Error(err))
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Close(); err != nil {
			slog.WarnContext(ctx, "Failed to close notification sinks", logfields.Error(err))
		}
	}
	slog.InfoContext(ctx, "Daemon stopped", slog.String("uptime", fmt.Sprint(time.Since(d.startTime).Round(time.Second))))
}
