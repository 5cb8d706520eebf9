package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/eventstore"
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/metrics"
	"git.home.luguber.info/inful/buildwatch/internal/monitor"
	"git.home.luguber.info/inful/buildwatch/internal/notify"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

// ServerStatus is the JSON view of one monitored server.
type ServerStatus struct {
	Name      string               `json:"name"`
	URL       string               `json:"url"`
	Tracked   int                  `json:"tracked"`
	Truncated bool                 `json:"truncated"`
	Jobs      []state.BuildState   `json:"jobs"`
	LastCycle *monitor.CycleReport `json:"last_cycle,omitempty"`
	NextRun   *time.Time           `json:"next_run,omitempty"`
}

// Handler returns the HTTP API:
//
//	GET /healthz           health checks
//	GET /status            every server
//	GET /status/{server}   one server; ?format=text renders the chat listing
//	GET /history           recorded transitions (?server=&prefix=&since=&limit=)
//	GET /metrics           Prometheus metrics
func (d *Daemon) Handler() http.Handler {
	adapter := errors.NewHTTPErrorAdapter(slog.Default())
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := d.PerformHealthChecks()
		status := http.StatusOK
		if resp.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		names := d.ServerNames()
		out := make([]ServerStatus, 0, len(names))
		for _, name := range names {
			if r, ok := d.runner(name); ok {
				out = append(out, r.status())
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /status/{server}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("server")
		runner, ok := d.runner(name)
		if !ok {
			adapter.WriteErrorResponse(w, r, errors.NotFoundError("unknown server").
				WithContext("server", name).
				Build())
			return
		}
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = fmt.Fprintln(w, notify.FormatStatus(name, runner.monitor.State(), runner.config.ProjectLimit()))
			return
		}
		writeJSON(w, http.StatusOK, runner.status())
	})

	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		q, err := historyQuery(r)
		if err != nil {
			adapter.WriteErrorResponse(w, r, err)
			return
		}
		d.mu.RLock()
		history := d.history
		d.mu.RUnlock()
		if history == nil {
			adapter.WriteErrorResponse(w, r, errors.NotFoundError("change history is disabled").Build())
			return
		}
		changes, err := history.Recent(r.Context(), q)
		if err != nil {
			adapter.WriteErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, changes)
	})

	mux.Handle("GET /metrics", metrics.HTTPHandler(d.registry))

	return chain(slog.Default(), adapter)(mux)
}

// runner returns the runner of server name. The runner stays usable after a
// reload removes it from the daemon.
func (d *Daemon) runner(name string) (*serverRunner, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.runners[name]
	return r, ok
}

func (r *serverRunner) status() ServerStatus {
	snapshot := r.monitor.State()
	st := ServerStatus{
		Name:      r.config.Name,
		URL:       r.config.URL,
		Tracked:   len(snapshot),
		Truncated: notify.Truncated(snapshot, r.config.ProjectLimit()),
		Jobs:      notify.SortedStates(snapshot),
	}
	if last, ok := r.monitor.LastCycle(); ok {
		st.LastCycle = &last
	}
	if next, ok := r.scheduler.NextRun(); ok {
		st.NextRun = &next
	}
	return st
}

func historyQuery(r *http.Request) (eventstore.Query, error) {
	values := r.URL.Query()
	q := eventstore.Query{Server: values.Get("server"), KeyPrefix: values.Get("prefix")}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errors.ValidationError("limit must be a non-negative integer").
				WithContext("limit", raw).
				Build()
		}
		q.Limit = n
	}
	if raw := values.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, errors.ValidationError("since must be an RFC 3339 timestamp").
				WithContext("since", raw).
				Build()
		}
		q.Since = since
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", logfields.Error(err))
	}
}

// startHTTP binds addr before serving so that a taken port fails Start.
func (d *Daemon) startHTTP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to bind HTTP listener").
			WithContext("addr", addr).
			Build()
	}
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.mu.Lock()
	d.httpServer = srv
	d.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", logfields.Error(err))
		}
	}()
	slog.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}
