package monitor

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildwatch/internal/jenkins"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

func newMonitor(t *testing.T, r Reader, s Store, opts ...Option) (*Monitor, *changeLog) {
	t.Helper()
	log := &changeLog{}
	m, err := New(t.Context(), "ci.test", r, s, append(opts, WithListener(log.listen))...)
	require.NoError(t, err)
	return m, log
}

func TestScenarioFirstObservationIsNotAChange(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(7, "FAILURE"))
	store := &memStore{}
	m, log := newMonitor(t, r, store)

	report, err := m.Cycle(t.Context())
	require.NoError(t, err)

	assert.Equal(t, state.Snapshot{"/A": {Key: "/A", BuildID: 7, Color: "FAILURE", Culprits: []string{}}}, m.State())
	assert.Equal(t, m.State(), store.snapshot)
	assert.Empty(t, report.Changes)
	require.Len(t, log.all(), 1)
	assert.Empty(t, log.all()[0])
	assert.NotNil(t, log.all()[0])
}

func TestScenarioColorTransitionIsReported(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(7, "FAILURE"))
	m, log := newMonitor(t, r, &memStore{})
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)

	r.setBuild("/A", completed(8, "SUCCESS", "Ann"))
	report, err := m.Cycle(t.Context())
	require.NoError(t, err)

	want := []ChangeRecord{{
		Previous: state.BuildState{Key: "/A", BuildID: 7, Color: "FAILURE", Culprits: []string{}},
		Current:  state.BuildState{Key: "/A", BuildID: 8, Color: "SUCCESS", Culprits: []string{"Ann"}},
	}}
	assert.Equal(t, want, report.Changes)
	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, want, calls[1])
	assert.Equal(t, 8, m.State()["/A"].BuildID)
}

func TestScenarioJobWithoutBuildsIsEvicted(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(7, "FAILURE"))
	m, _ := newMonitor(t, r, &memStore{})
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)
	require.Contains(t, m.State(), "/A")

	r.setBuild("/A", nil)
	_, err = m.Cycle(t.Context())
	require.NoError(t, err)
	assert.NotContains(t, m.State(), "/A")
}

func TestRunningBuildKeepsCompletedEntry(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(1, "SUCCESS"))
	m, log := newMonitor(t, r, &memStore{})
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)

	r.setBuild("/A", building(2))
	_, err = m.Cycle(t.Context())
	require.NoError(t, err)

	assert.Equal(t, state.BuildState{Key: "/A", BuildID: 1, Color: "SUCCESS", Culprits: []string{}}, m.State()["/A"])
	assert.Empty(t, log.all()[1])
}

func TestCycleIsIdempotent(t *testing.T) {
	r := newFakeReader()
	r.addJob("/F", nil)
	r.addJob("/F/x", completed(3, "UNSTABLE", "Bob"))
	r.addJob("/Z", completed(4, "SUCCESS"))
	store := state.NewJSONStore(t.TempDir(), "ci.test")
	m, _ := newMonitor(t, r, store)

	_, err := m.Cycle(t.Context())
	require.NoError(t, err)
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	report, err := m.Cycle(t.Context())
	require.NoError(t, err)
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.Empty(t, report.Changes)
	assert.Equal(t, string(first), string(second))
}

func TestFilteredJobsNeverReachSnapshot(t *testing.T) {
	r := newFakeReader()
	r.addJob("/keep", completed(1, "SUCCESS"))
	r.addJob("/drop", nil)
	r.addJob("/drop/child", completed(1, "SUCCESS"))
	m, _ := newMonitor(t, r, &memStore{}, WithFilterPrefix("/keep"))

	_, err := m.Cycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"/keep"}, m.State().Keys())
}

func TestBudgetLeavesUnvisitedEntriesUntouched(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(2, "SUCCESS"))
	r.addJob("/B", completed(2, "SUCCESS"))
	store := &memStore{snapshot: state.Snapshot{
		"/B": {Key: "/B", BuildID: 1, Color: "FAILURE", Culprits: []string{}},
	}}
	m, log := newMonitor(t, r, store, WithMaxProjects(1))

	report, err := m.Cycle(t.Context())
	require.NoError(t, err)

	assert.True(t, report.BudgetExceeded)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, m.State()["/B"].BuildID, "unvisited job keeps its previous entry")
	assert.Empty(t, log.all()[0])
}

func TestRemoteFailureAbortsCycle(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(1, "SUCCESS"))
	store := &memStore{}
	m, log := newMonitor(t, r, store)
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)

	r.setBuild("/A", completed(2, "FAILURE"))
	r.failOn(fakeBase, &jenkins.RemoteError{Message: "connection refused"})
	report, err := m.Cycle(t.Context())

	require.Error(t, err)
	var remote *jenkins.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.NotEmpty(t, report.Err)
	assert.Equal(t, 1, store.saves, "failed cycle must not save")
	assert.Len(t, log.all(), 1, "failed cycle must not notify")
	assert.Equal(t, "SUCCESS", m.State()["/A"].Color)

	last, ok := m.LastCycle()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)
}

func TestSaveFailureKeepsPreviousSnapshot(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(1, "SUCCESS"))
	store := &memStore{}
	m, log := newMonitor(t, r, store)
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)

	r.setBuild("/A", completed(2, "FAILURE"))
	store.saveErr = errors.New("disk full")
	_, err = m.Cycle(t.Context())
	require.Error(t, err)
	assert.Equal(t, "SUCCESS", m.State()["/A"].Color)
	assert.Len(t, log.all(), 1)

	// The transition is reported once the store recovers.
	store.saveErr = nil
	report, err := m.Cycle(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, "FAILURE", report.Changes[0].Current.Color)
}

func TestNewFailsOnCorruptState(t *testing.T) {
	dir := t.TempDir()
	store := state.NewJSONStore(dir, "ci.test")
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := New(t.Context(), "ci.test", newFakeReader(), store)
	var corrupt *state.CorruptStateError
	require.ErrorAs(t, err, &corrupt)
}

func TestLoadStateDisabled(t *testing.T) {
	store := &memStore{snapshot: state.Snapshot{"/old": {Key: "/old", Color: "SUCCESS", Culprits: []string{}}}}
	store.loadErr = errors.New("must not be called")

	m, err := New(t.Context(), "ci.test", newFakeReader(), store, WithLoadState(false))
	require.NoError(t, err)
	assert.Empty(t, m.State())
}

func TestLoadedStateSeedsDiff(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(9, "SUCCESS"))
	store := &memStore{snapshot: state.Snapshot{"/A": {Key: "/A", BuildID: 8, Color: "FAILURE", Culprits: []string{}}}}
	m, _ := newMonitor(t, r, store)

	report, err := m.Cycle(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, 8, report.Changes[0].Previous.BuildID)
}

func TestStateReturnsCopy(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(1, "SUCCESS", "Ann"))
	m, _ := newMonitor(t, r, &memStore{})
	_, err := m.Cycle(t.Context())
	require.NoError(t, err)

	s := m.State()
	s["/A"].Culprits[0] = "changed"
	delete(s, "/A")

	assert.Equal(t, []string{"Ann"}, m.State()["/A"].Culprits)
}

func TestConcurrentStateReads(t *testing.T) {
	r := newFakeReader()
	r.addJob("/A", completed(1, "SUCCESS"))
	m, _ := newMonitor(t, r, &memStore{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			_ = m.State()
		}
	}()
	for range 5 {
		_, err := m.Cycle(t.Context())
		require.NoError(t, err)
	}
	<-done
}
