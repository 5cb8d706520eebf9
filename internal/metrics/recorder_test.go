package metrics

import (
	"testing"
	"time"
)

// Compile-time and behavioural check that NoopRecorder satisfies Recorder and never panics.
func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveCycleDuration("ci", time.Second)
	r.IncCycleResult("ci", ResultCanceled)
	r.AddChanges("ci", 2)
	r.SetTrackedJobs("ci", 1)
	r.IncBudgetExceeded("ci")
	r.SetLastSuccess("ci", time.Now())
	r.IncNotifyResult("log", true)
}

var _ Recorder = (*PrometheusRecorder)(nil)
