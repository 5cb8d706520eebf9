package daemon

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks reports one check per monitored server. A server whose
// last cycle failed degrades the daemon; no running monitors make it unhealthy.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	now := time.Now()
	names := d.ServerNames()

	overall := HealthStatusHealthy
	if len(names) == 0 {
		overall = HealthStatusUnhealthy
	}

	checks := make([]HealthCheck, 0, len(names))
	for _, name := range names {
		check := d.checkServerHealth(name, now)
		if check.Status != HealthStatusHealthy && overall == HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
		checks = append(checks, check)
	}

	return &HealthResponse{
		Status:    overall,
		Timestamp: now,
		Uptime:    time.Since(d.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func (d *Daemon) checkServerHealth(name string, now time.Time) HealthCheck {
	check := HealthCheck{Name: "server:" + name, LastChecked: now}

	mon, ok := d.Monitor(name)
	if !ok {
		check.Status = HealthStatusUnhealthy
		check.Message = "Monitor is not running"
		return check
	}
	last, ok := mon.LastCycle()
	switch {
	case !ok:
		check.Status = HealthStatusDegraded
		check.Message = "No poll cycle completed yet"
	case last.Err != "":
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("Last poll cycle failed: %s", last.Err)
	default:
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Tracking %d jobs", len(mon.State()))
	}
	return check
}
