package daemon

import (
	"time"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Daemon    Status       `json:"daemon"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Building  bool         `json:"building"`
	LastBuild *LastBuild   `json:"last_build,omitempty"`
	NextRun   *time.Time   `json:"next_run,omitempty"`
}

// Health reports the daemon state. The last build not producing promoted
// output makes the daemon degraded; a stopped daemon is unhealthy.
func (d *Daemon) Health() *HealthResponse {
	resp := &HealthResponse{
		Status:    HealthStatusHealthy,
		Daemon:    d.Status(),
		Timestamp: time.Now(),
		Version:   version.Version,
		Building:  d.Building(),
		LastBuild: d.LastBuild(),
	}
	if !d.startTime.IsZero() {
		resp.Uptime = time.Since(d.startTime).Truncate(time.Second).String()
	}
	if next := d.NextRun(); !next.IsZero() {
		resp.NextRun = &next
	}

	switch {
	case resp.Daemon != StatusRunning:
		resp.Status = HealthStatusUnhealthy
	case resp.LastBuild != nil && resp.LastBuild.Outcome != build.OutcomeSuccess && resp.LastBuild.Outcome != build.OutcomePartial:
		resp.Status = HealthStatusDegraded
	}
	return resp
}
