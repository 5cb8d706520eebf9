package eventstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

// Change is one stored status transition.
type Change struct {
	ID            int64     `json:"id"`
	EventID       string    `json:"event_id"`
	Server        string    `json:"server"`
	Key           string    `json:"key"`
	PreviousColor string    `json:"previous_color"`
	PreviousBuild int       `json:"previous_build"`
	Color         string    `json:"color"`
	BuildID       int       `json:"build_id"`
	Culprits      []string  `json:"culprits"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Query filters Recent. Zero values match everything; Limit <= 0 means 100.
type Query struct {
	Server    string
	KeyPrefix string
	Since     time.Time
	Limit     int
}

const defaultLimit = 100

// Store persists change events.
type Store interface {
	// Append stores every change of event.
	Append(ctx context.Context, event notify.Event) error

	// Recent returns matching changes, newest first.
	Recent(ctx context.Context, q Query) ([]Change, error)

	// Close closes the store and releases resources.
	Close() error
}
