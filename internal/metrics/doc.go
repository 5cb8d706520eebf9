// Package metrics exposes poll cycle and notification metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never requires nil checks:
//
//	mon, _ := monitor.New(reader, store, monitor.WithRecorder(metrics.NoopRecorder{}))
//
// The daemon swaps in a PrometheusRecorder registered on its own registry and
// serves it through HTTPHandler on /metrics.
package metrics
