package eventstore

import (
	"context"

	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

// HistorySink records delivered events in a Store.
type HistorySink struct {
	store Store
}

// NewHistorySink wraps store as a notification sink.
func NewHistorySink(store Store) *HistorySink {
	return &HistorySink{store: store}
}

func (s *HistorySink) Name() string { return "history" }

func (s *HistorySink) Notify(ctx context.Context, event notify.Event) error {
	return s.store.Append(ctx, event)
}

func (s *HistorySink) Close() error { return s.store.Close() }

var _ notify.Sink = (*HistorySink)(nil)
