package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/metrics"
	"git.home.luguber.info/inful/buildwatch/internal/monitor"
)

// Sink consumes change events.
type Sink interface {
	Name() string
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Dispatcher delivers each event to all sinks concurrently.
type Dispatcher struct {
	sinks    []Sink
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewDispatcher fans out to sinks. A nil recorder disables metrics.
func NewDispatcher(recorder metrics.Recorder, sinks ...Sink) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Dispatcher{sinks: sinks, recorder: recorder, logger: slog.Default()}
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Notify delivers event to every sink and returns the joined delivery errors.
// One failing sink does not prevent delivery to the others.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	errs := make([]error, len(d.sinks))
	var g errgroup.Group
	for i, s := range d.sinks {
		g.Go(func() error {
			err := s.Notify(ctx, event)
			d.recorder.IncNotifyResult(s.Name(), err == nil)
			if err != nil {
				d.logger.WarnContext(ctx, "Notification failed",
					logfields.Sink(s.Name()),
					logfields.Server(event.Server),
					logfields.Error(err))
				errs[i] = errors.WrapError(err, errors.CategoryNotify, "notification failed").
					WithContext("sink", s.Name()).
					Build()
			}
			return nil
		})
	}
	_ = g.Wait()
	return stderrors.Join(errs...)
}

// Listener adapts the dispatcher to a monitor change listener. Cycles without
// changes are not delivered.
func (d *Dispatcher) Listener() monitor.ChangeListener {
	return func(ctx context.Context, server string, changes []monitor.ChangeRecord) {
		if len(changes) == 0 || len(d.sinks) == 0 {
			return
		}
		_ = d.Notify(ctx, NewEvent(server, changes))
	}
}

// Close closes all sinks.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}
