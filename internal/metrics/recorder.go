package metrics

import "time"

// ResultLabel enumerates poll cycle outcomes for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for poll cycles and notifications.
type Recorder interface {
	ObserveCycleDuration(server string, d time.Duration)
	IncCycleResult(server string, result ResultLabel)
	AddChanges(server string, n int)
	SetTrackedJobs(server string, n int)
	IncBudgetExceeded(server string)
	SetLastSuccess(server string, t time.Time)
	IncNotifyResult(sink string, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(string, time.Duration) {}
func (NoopRecorder) IncCycleResult(string, ResultLabel)         {}
func (NoopRecorder) AddChanges(string, int)                     {}
func (NoopRecorder) SetTrackedJobs(string, int)                 {}
func (NoopRecorder) IncBudgetExceeded(string)                   {}
func (NoopRecorder) SetLastSuccess(string, time.Time)           {}
func (NoopRecorder) IncNotifyResult(string, bool)               {}
