package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/repositories"
)

var (
	// ErrSessionInvalidInput indicates a malformed session id or command.
	ErrSessionInvalidInput = errors.New("session: invalid input")
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionConflict indicates a concurrent write won.
	ErrSessionConflict = errors.New("session: conflict")
	// ErrSessionUnavailable indicates the backing store could not be reached.
	ErrSessionUnavailable = errors.New("session: unavailable")

	errSessionStoreEngineRequired = errors.New("session store: pricing engine is required")
	errSessionStoreRepoRequired   = errors.New("session store: repository is required")
)

// SessionStore loads sessions into workspaces and persists them write-through. Mutations on
// the same session id run one at a time. It is shared by the session and submission services
// so both observe the same per-session lock.
type SessionStore struct {
	engine *PricingEngine
	repo   repositories.SessionRepository
	locks  *keyedMutex
	now    func() time.Time
}

// NewSessionStore validates dependencies. A nil clock uses time.Now.
func NewSessionStore(engine *PricingEngine, repo repositories.SessionRepository, clock func() time.Time) (*SessionStore, error) {
	if engine == nil {
		return nil, errSessionStoreEngineRequired
	}
	if repo == nil {
		return nil, errSessionStoreRepoRequired
	}
	if clock == nil {
		clock = time.Now
	}
	return &SessionStore{
		engine: engine,
		repo:   repo,
		locks:  newKeyedMutex(),
		now:    func() time.Time { return clock().UTC() },
	}, nil
}

// Engine exposes the pricing engine the store hydrates against.
func (s *SessionStore) Engine() *PricingEngine {
	return s.engine
}

func (s *SessionStore) create(ctx context.Context, id string) (*workspace, error) {
	now := s.now()
	session := domain.Session{
		ID:        id,
		Builders:  map[domain.ServiceType]domain.BuilderState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, translateSessionRepoError(err)
	}
	return newWorkspace(s.engine, session), nil
}

// read loads a workspace without taking the session lock.
func (s *SessionStore) read(ctx context.Context, sessionID string) (*workspace, error) {
	id, err := normaliseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translateSessionRepoError(err)
	}
	return newWorkspace(s.engine, session), nil
}

// mutate runs fn on a freshly loaded workspace under the session lock and saves the result.
// Nothing is written when fn fails.
func (s *SessionStore) mutate(ctx context.Context, sessionID string, fn func(ws *workspace, now time.Time) error) (*workspace, error) {
	id, err := normaliseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translateSessionRepoError(err)
	}
	ws := newWorkspace(s.engine, session)
	now := s.now()
	if err := fn(ws, now); err != nil {
		return nil, err
	}
	ws.session = ws.toSession(now)
	if err := s.repo.Save(ctx, ws.session); err != nil {
		return nil, translateSessionRepoError(err)
	}
	return ws, nil
}

func normaliseSessionID(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", fmt.Errorf("%w: session id is required", ErrSessionInvalidInput)
	}
	return id, nil
}

func translateSessionRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrSessionConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
	}
	return fmt.Errorf("session store: %w", err)
}
