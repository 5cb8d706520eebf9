package monitor

import (
	"context"

	"git.home.luguber.info/inful/buildwatch/internal/foundation"
	"git.home.luguber.info/inful/buildwatch/internal/jenkins"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

// Reader fetches Jenkins documents. *jenkins.Client implements it.
type Reader interface {
	FetchOverview(ctx context.Context) (*jenkins.Overview, error)
	FetchJob(ctx context.Context, url string) (*jenkins.Job, error)
	FetchBuild(ctx context.Context, url string) (*jenkins.Build, error)
}

// Store persists a server snapshot. *state.JSONStore implements it.
type Store interface {
	Load(ctx context.Context) (state.Snapshot, error)
	Save(ctx context.Context, snapshot state.Snapshot) error
	Path() string
}

// Directive is the walker's verdict for one key: a new state, or None to evict it.
type Directive struct {
	Key   string
	State foundation.Option[state.BuildState]
}

// Update returns a directive replacing the state stored for bs.Key.
func Update(bs state.BuildState) Directive {
	return Directive{Key: bs.Key, State: foundation.Some(bs)}
}

// Remove returns a directive evicting key.
func Remove(key string) Directive {
	return Directive{Key: key, State: foundation.None[state.BuildState]()}
}

// ChangeRecord is a color transition of one job between two cycles.
type ChangeRecord struct {
	Previous state.BuildState `json:"previous"`
	Current  state.BuildState `json:"current"`
}

// Key returns the job key shared by both sides.
func (c ChangeRecord) Key() string { return c.Current.Key }

// ChangeListener receives the changes of one completed cycle, possibly none,
// after the snapshot has been saved.
type ChangeListener func(ctx context.Context, server string, changes []ChangeRecord)
