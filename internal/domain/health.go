package domain

import "time"

// HealthStatus summarises a dependency probe.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency answered in time.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency answered with an error.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency did not answer before its deadline.
	HealthStatusError HealthStatus = "error"
)

// HealthCheck is the outcome of one dependency probe.
type HealthCheck struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency status for the readiness endpoint.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
