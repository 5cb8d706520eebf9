package monitor

import (
	"log/slog"

	"git.home.luguber.info/inful/buildwatch/internal/metrics"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithFilterPrefix restricts monitoring to keys starting with prefix.
func WithFilterPrefix(prefix string) Option {
	return func(m *Monitor) { m.filterPrefix = prefix }
}

// WithMaxProjects caps the directives applied per cycle; n <= 0 disables the cap.
func WithMaxProjects(n int) Option {
	return func(m *Monitor) { m.maxProjects = n }
}

// WithLoadState controls whether New reads the persisted snapshot. When false the
// monitor starts empty and overwrites the document after its first cycle.
func WithLoadState(load bool) Option {
	return func(m *Monitor) { m.loadState = load }
}

// WithListener registers a change listener. Listeners run in registration order.
func WithListener(l ChangeListener) Option {
	return func(m *Monitor) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Monitor) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger sets the base logger; the server attribute is added by the monitor.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}
