package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/metrics"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	ID             string         `json:"id"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration"`
	Visited        int            `json:"visited"`
	Applied        int            `json:"applied"`
	Changes        []ChangeRecord `json:"changes"`
	BudgetExceeded bool           `json:"budget_exceeded"`
	Err            string         `json:"error,omitempty"`
}

// Monitor tracks the build state of one Jenkins server.
type Monitor struct {
	name         string
	reader       Reader
	store        Store
	filterPrefix string
	maxProjects  int
	loadState    bool
	listeners    []ChangeListener
	recorder     metrics.Recorder
	logger       *slog.Logger

	cycleMu sync.Mutex // one cycle at a time

	mu       sync.RWMutex
	snapshot state.Snapshot
	last     *CycleReport
}

// New builds a monitor for the server called name and loads its persisted
// snapshot. A corrupt snapshot is returned as an error rather than discarded.
func New(ctx context.Context, name string, reader Reader, store Store, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		name:      name,
		reader:    reader,
		store:     store,
		loadState: true,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logfields.Server(name))

	m.snapshot = state.Snapshot{}
	if m.loadState {
		snapshot, err := store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load state for %s: %w", name, err)
		}
		m.snapshot = snapshot
		m.logger.InfoContext(ctx, "Loaded state", logfields.Path(store.Path()), slog.Int("jobs", len(snapshot)))
	}
	return m, nil
}

// Name returns the server name.
func (m *Monitor) Name() string { return m.name }

// State returns a copy of the current snapshot.
func (m *Monitor) State() state.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Clone()
}

// LastCycle returns the report of the most recent cycle, if one ran.
func (m *Monitor) LastCycle() (CycleReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return CycleReport{}, false
	}
	return *m.last, true
}

// Cycle polls the server once: walk, diff, save, notify. On failure the snapshot
// and the persisted document stay as they were and no listener is called.
func (m *Monitor) Cycle(ctx context.Context) (CycleReport, error) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	report := CycleReport{ID: uuid.NewString(), StartedAt: time.Now(), Changes: []ChangeRecord{}}
	log := m.logger.With(logfields.CycleID(report.ID))
	log.DebugContext(ctx, "Poll cycle started")

	changes, err := m.poll(ctx, log, &report)
	report.Duration = time.Since(report.StartedAt)
	m.recorder.ObserveCycleDuration(m.name, report.Duration)

	if err != nil {
		report.Err = err.Error()
		m.record(report)
		if stderrors.Is(err, context.Canceled) {
			m.recorder.IncCycleResult(m.name, metrics.ResultCanceled)
		} else {
			m.recorder.IncCycleResult(m.name, metrics.ResultFailed)
		}
		return report, err
	}

	report.Changes = changes
	m.record(report)
	m.recorder.IncCycleResult(m.name, metrics.ResultSuccess)
	m.recorder.SetLastSuccess(m.name, time.Now())
	m.recorder.AddChanges(m.name, len(changes))

	log.InfoContext(ctx, "Poll cycle completed",
		logfields.Observed(report.Visited),
		logfields.Changes(len(changes)),
		logfields.Duration(report.Duration))

	for _, l := range m.listeners {
		l(ctx, m.name, changes)
	}
	return report, nil
}

func (m *Monitor) poll(ctx context.Context, log *slog.Logger, report *CycleReport) ([]ChangeRecord, error) {
	overview, err := m.reader.FetchOverview(ctx)
	if err != nil {
		return nil, &WalkError{Err: err}
	}

	walker := NewWalker(m.reader, m.filterPrefix)
	walker.logger = log
	result, err := walker.Walk(ctx, overview, "", m.maxProjects)
	if err != nil {
		return nil, err
	}
	report.Visited = result.Visited
	report.Applied = len(result.Directives)
	report.BudgetExceeded = result.BudgetExceeded
	if result.BudgetExceeded {
		m.recorder.IncBudgetExceeded(m.name)
	}

	next := m.State()
	changes := Apply(next, result.Directives)

	if err := m.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	m.mu.Lock()
	m.snapshot = next
	m.mu.Unlock()
	m.recorder.SetTrackedJobs(m.name, len(next))
	return changes, nil
}

func (m *Monitor) record(report CycleReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &report
}
