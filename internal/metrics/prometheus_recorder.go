package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "buildwatch"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycleDuration  *prom.HistogramVec
	cycleResults   *prom.CounterVec
	changes        *prom.CounterVec
	trackedJobs    *prom.GaugeVec
	budgetExceeded *prom.CounterVec
	lastSuccess    *prom.GaugeVec
	notifyResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles",
			Buckets:   prom.DefBuckets,
		}, []string{"server"}),
		cycleResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_results_total",
			Help:      "Poll cycle results by outcome",
		}, []string{"server", "result"}),
		changes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Build status transitions detected",
		}, []string{"server"}),
		trackedJobs: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_jobs",
			Help:      "Jobs in the current snapshot",
		}, []string{"server"}),
		budgetExceeded: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "budget_exceeded_total",
			Help:      "Cycles that stopped early at the project cap",
		}, []string{"server"}),
		lastSuccess: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll cycle",
		}, []string{"server"}),
		notifyResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notify_results_total",
			Help:      "Notification deliveries by sink and result",
		}, []string{"sink", "result"}),
	}
	reg.MustRegister(pr.cycleDuration, pr.cycleResults, pr.changes, pr.trackedJobs,
		pr.budgetExceeded, pr.lastSuccess, pr.notifyResults)
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(server string, d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.WithLabelValues(server).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleResult(server string, result ResultLabel) {
	if p == nil {
		return
	}
	p.cycleResults.WithLabelValues(server, string(result)).Inc()
}

func (p *PrometheusRecorder) AddChanges(server string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.changes.WithLabelValues(server).Add(float64(n))
}

func (p *PrometheusRecorder) SetTrackedJobs(server string, n int) {
	if p == nil {
		return
	}
	p.trackedJobs.WithLabelValues(server).Set(float64(n))
}

func (p *PrometheusRecorder) IncBudgetExceeded(server string) {
	if p == nil {
		return
	}
	p.budgetExceeded.WithLabelValues(server).Inc()
}

func (p *PrometheusRecorder) SetLastSuccess(server string, t time.Time) {
	if p == nil {
		return
	}
	p.lastSuccess.WithLabelValues(server).Set(float64(t.Unix()))
}

func (p *PrometheusRecorder) IncNotifyResult(sink string, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.notifyResults.WithLabelValues(sink, res).Inc()
}
