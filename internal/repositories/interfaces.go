package repositories

import (
	"context"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// SessionRepository persists configurator sessions. Get returns a RepositoryError reporting
// IsNotFound for unknown ids. Save replaces the stored session.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, sessionID string) error
}

// HealthRepository probes backing services for readiness.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
