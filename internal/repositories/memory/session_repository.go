// Package memory holds process-local repository implementations for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/repositories"
)

// Error implements repositories.RepositoryError for the memory backend.
type Error struct {
	op       string
	err      error
	notFound bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports a missing session.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsConflict is always false; the memory store has no preconditions.
func (e *Error) IsConflict() bool { return false }

// IsUnavailable is always false.
func (e *Error) IsUnavailable() bool { return false }

var errSessionMissing = errors.New("session not found")

// SessionRepository stores sessions in a map. Values are deep-copied on the way in and out.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository returns an empty repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]domain.Session)}
}

// Get returns a copy of the stored session.
func (r *SessionRepository) Get(_ context.Context, sessionID string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return domain.Session{}, &Error{op: "sessions.get", err: errSessionMissing, notFound: true}
	}
	return session.Clone(), nil
}

// Save stores a copy of session, replacing any previous value.
func (r *SessionRepository) Save(_ context.Context, session domain.Session) error {
	id := strings.TrimSpace(session.ID)
	if id == "" {
		return &Error{op: "sessions.save", err: errors.New("session id is required")}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = session.Clone()
	return nil
}

// Delete removes the session; unknown ids are ignored.
func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, strings.TrimSpace(sessionID))
	return nil
}

// Len reports the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
