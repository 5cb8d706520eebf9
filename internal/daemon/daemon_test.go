package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/eventstore"
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// fakeJenkins serves a root with a single job "A" whose last build result can be changed.
type fakeJenkins struct {
	*httptest.Server
	mu     sync.Mutex
	result string
}

func (f *fakeJenkins) setResult(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

func newFakeJenkins(t *testing.T, result string) *fakeJenkins {
	t.Helper()
	f := &fakeJenkins{result: result}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"mode":"NORMAL","jobs":[{"name":"A","url":"%s/job/A/"}]}`, f.URL)
	})
	mux.HandleFunc("/job/A/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"name":"A","url":"%s/job/A/","lastBuild":{"number":1,"url":"%s/job/A/1/"}}`, f.URL, f.URL)
	})
	mux.HandleFunc("/job/A/1/api/json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"number":1,"building":false,"result":%q,"culprits":[{"fullName":"bob"}]}`, f.result)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func testConfig(t *testing.T, dataDir, interval string, servers map[string]string) *config.Config {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "data_dir: %s\nmonitor:\n  interval: %s\nnotify:\n  log: false\nservers:\n", dataDir, interval)
	for name, url := range servers {
		fmt.Fprintf(&b, "  - name: %s\n    url: %s\n", name, url)
	}
	cfg, err := config.Parse([]byte(b.String()))
	require.NoError(t, err)
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d := New(cfg, "")
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { d.shutdown(context.Background()) })
	return d
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDaemonStartPollsAndPersists(t *testing.T) {
	jenkins := newFakeJenkins(t, "SUCCESS")
	dataDir := t.TempDir()
	cfg := testConfig(t, dataDir, "1h", map[string]string{"ci": jenkins.URL})

	d := startDaemon(t, cfg)

	assert.Equal(t, []string{"ci"}, d.ServerNames())
	mon, ok := d.Monitor("ci")
	require.True(t, ok)
	snap := mon.State()
	require.Contains(t, snap, "/A")
	assert.Equal(t, "SUCCESS", snap["/A"].Color)
	assert.Equal(t, []string{"bob"}, snap["/A"].Culprits)

	sc, _ := cfg.Server("ci")
	assert.FileExists(t, StoreFor(cfg, sc).Path())
	assert.Equal(t, dataDir, filepath.Dir(StoreFor(cfg, sc).Path()))
}

func TestDaemonHTTPEndpoints(t *testing.T) {
	jenkins := newFakeJenkins(t, "FAILURE")
	cfg := testConfig(t, t.TempDir(), "1h", map[string]string{"ci": jenkins.URL})
	d := startDaemon(t, cfg)
	h := d.Handler()

	jenkins.setResult("SUCCESS")
	mon, ok := d.Monitor("ci")
	require.True(t, ok)
	_, err := mon.Cycle(context.Background())
	require.NoError(t, err)

	t.Run("healthz", func(t *testing.T) {
		rec := get(t, h, "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, HealthStatusHealthy, resp.Status)
		require.Len(t, resp.Checks, 1)
		assert.Equal(t, "server:ci", resp.Checks[0].Name)
	})

	t.Run("status", func(t *testing.T) {
		rec := get(t, h, "/status")
		require.Equal(t, http.StatusOK, rec.Code)
		var out []ServerStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "ci", out[0].Name)
		assert.Equal(t, 1, out[0].Tracked)
		require.NotNil(t, out[0].LastCycle)
		assert.Len(t, out[0].LastCycle.Changes, 1)
		assert.Eventually(t, func() bool {
			r, ok := d.runner("ci")
			return ok && r.status().NextRun != nil
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("status text", func(t *testing.T) {
		rec := get(t, h, "/status/ci?format=text")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "✅ A (bob)")
	})

	t.Run("unknown server", func(t *testing.T) {
		rec := get(t, h, "/status/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown server")
	})

	t.Run("history", func(t *testing.T) {
		rec := get(t, h, "/history?server=ci")
		require.Equal(t, http.StatusOK, rec.Code)
		var changes []eventstore.Change
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
		require.Len(t, changes, 1)
		assert.Equal(t, "/A", changes[0].Key)
		assert.Equal(t, "FAILURE", changes[0].PreviousColor)
		assert.Equal(t, "SUCCESS", changes[0].Color)
	})

	t.Run("history bad limit", func(t *testing.T) {
		rec := get(t, h, "/history?limit=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := get(t, h, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "buildwatch_cycle_results_total")
	})
}

func TestDaemonReloadReconcilesServers(t *testing.T) {
	first := newFakeJenkins(t, "SUCCESS")
	second := newFakeJenkins(t, "UNSTABLE")
	dataDir := t.TempDir()
	ctx := context.Background()

	d := startDaemon(t, testConfig(t, dataDir, "1h", map[string]string{"ci": first.URL}))
	ciBefore, _ := d.Monitor("ci")

	require.NoError(t, d.Reload(ctx, testConfig(t, dataDir, "1h", map[string]string{"ci": first.URL, "other": second.URL})))
	assert.Equal(t, []string{"ci", "other"}, d.ServerNames())
	ciAfter, _ := d.Monitor("ci")
	assert.Same(t, ciBefore, ciAfter, "unchanged server keeps its monitor")
	other, _ := d.Monitor("other")
	assert.Equal(t, "UNSTABLE", other.State()["/A"].Color)

	require.NoError(t, d.Reload(ctx, testConfig(t, dataDir, "2h", map[string]string{"other": second.URL})))
	assert.Equal(t, []string{"other"}, d.ServerNames())
	restarted, _ := d.Monitor("other")
	assert.NotSame(t, other, restarted, "changed interval restarts the monitor")
	assert.Equal(t, "UNSTABLE", restarted.State()["/A"].Color)
	assert.Equal(t, 2*time.Hour, d.Config().Monitor.Interval)
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	jenkins := newFakeJenkins(t, "SUCCESS")
	d := New(testConfig(t, t.TempDir(), "1h", map[string]string{"ci": jenkins.URL}), "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(d.ServerNames()) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, d.ServerNames())
}

func TestHealthWithoutMonitorsIsUnhealthy(t *testing.T) {
	d := New(&config.Config{}, "")
	rec := get(t, d.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDaemonStartFailsOnCorruptState(t *testing.T) {
	jenkins := newFakeJenkins(t, "SUCCESS")
	cfg := testConfig(t, t.TempDir(), "1h", map[string]string{"ci": jenkins.URL})
	sc, _ := cfg.Server("ci")
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o750))
	require.NoError(t, os.WriteFile(StoreFor(cfg, sc).Path(), []byte("{not json"), 0o600))

	err := New(cfg, "").Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
}

func TestReloadDoesNotBlockReadersDuringFirstCycle(t *testing.T) {
	first := newFakeJenkins(t, "SUCCESS")
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		_, _ = fmt.Fprint(w, `{"jobs":[]}`)
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	dataDir := t.TempDir()
	d := startDaemon(t, testConfig(t, dataDir, "1h", map[string]string{"ci": first.URL}))
	h := d.Handler()

	reloaded := make(chan error, 1)
	go func() {
		reloaded <- d.Reload(context.Background(), testConfig(t, dataDir, "1h", map[string]string{"ci": first.URL, "slow": slow.URL}))
	}()
	<-entered

	served := make(chan int, 1)
	go func() { served <- get(t, h, "/status/ci").Code }()
	select {
	case code := <-served:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("status request blocked while a new server ran its first cycle")
	}
	assert.Equal(t, []string{"ci"}, d.ServerNames())

	close(release)
	require.NoError(t, <-reloaded)
	assert.Equal(t, []string{"ci", "slow"}, d.ServerNames())
}

func TestRemovedRunnerStillRendersStatus(t *testing.T) {
	jenkins := newFakeJenkins(t, "FAILURE")
	dataDir := t.TempDir()
	d := startDaemon(t, testConfig(t, dataDir, "1h", map[string]string{"ci": jenkins.URL}))
	other := newFakeJenkins(t, "SUCCESS")

	r, ok := d.runner("ci")
	require.True(t, ok)
	require.NoError(t, d.Reload(context.Background(), testConfig(t, dataDir, "1h", map[string]string{"other": other.URL})))

	st := r.status()
	assert.Equal(t, "ci", st.Name)
	assert.Equal(t, 1, st.Tracked)
	assert.Equal(t, http.StatusNotFound, get(t, d.Handler(), "/status/ci?format=text").Code)
}
