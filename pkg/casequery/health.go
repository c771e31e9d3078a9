package casequery

import (
	"context"

	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
)

// HealthStatus reports whether the client can serve searches.
type HealthStatus struct {
	Status string            // "ok" or "error"
	Checks map[string]string // "engine" → "ok"/"error"
}

// Ready reports whether searches can run.
func (h HealthStatus) Ready() bool {
	return h.Status != string(healthuc.Unhealthy)
}

// Health pings the search engine.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	status := HealthStatus{
		Status: string(report.Status),
		Checks: make(map[string]string, len(report.Checks)),
	}
	for name, result := range report.Checks {
		status.Checks[name] = string(result)
	}
	return status
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
