package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveCycleDuration("ci", 150*time.Millisecond)
	pr.IncCycleResult("ci", ResultSuccess)
	pr.IncCycleResult("ci", ResultFailed)
	pr.AddChanges("ci", 3)
	pr.AddChanges("ci", 0)
	pr.SetTrackedJobs("ci", 12)
	pr.IncBudgetExceeded("ci")
	pr.SetLastSuccess("ci", time.Unix(1700000000, 0))
	pr.IncNotifyResult("webhook", true)
	pr.IncNotifyResult("webhook", false)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.InDelta(t, 3, values["buildwatch_changes_total"], 0)
	assert.InDelta(t, 12, values["buildwatch_tracked_jobs"], 0)
	assert.InDelta(t, 2, values["buildwatch_cycle_results_total"], 0)
	assert.InDelta(t, 1700000000, values["buildwatch_last_success_timestamp_seconds"], 0)
	assert.InDelta(t, 2, values["buildwatch_notify_results_total"], 0)
	assert.InDelta(t, 1, values["buildwatch_budget_exceeded_total"], 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncCycleResult("ci", ResultSuccess)
	pr.AddChanges("ci", 1)
	pr.IncNotifyResult("log", true)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncCycleResult("ci", ResultSuccess)

	srv := httptest.NewServer(HTTPHandler(reg))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `buildwatch_cycle_results_total{result="success",server="ci"} 1`))
}
