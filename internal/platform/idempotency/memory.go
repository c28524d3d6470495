package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps receipts in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore constructs an empty memory-backed store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Reserve implements the Store interface.
func (s *MemoryStore) Reserve(_ context.Context, key, scope string, now time.Time, ttl time.Duration) (Reservation, error) {
	if strings.TrimSpace(key) == "" {
		return Reservation{}, ErrKeyRequired
	}
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	record, ok := s.records[id]
	if !ok || expired(record, now) {
		record = Record{
			Key:       key,
			Scope:     scope,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		s.records[id] = record
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	if record.Scope != scope {
		return Reservation{}, ErrScopeMismatch
	}
	record.Result = copyBytes(record.Result)
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

// Complete implements the Store interface.
func (s *MemoryStore) Complete(_ context.Context, key, scope string, result []byte, now time.Time, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	record, ok := s.records[id]
	if ok && record.Scope != scope {
		return ErrScopeMismatch
	}
	if !ok {
		record = Record{Key: key, Scope: scope, CreatedAt: now}
	}
	record.Status = StatusCompleted
	record.Result = copyBytes(result)
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	s.records[id] = record
	return nil
}

// Release deletes a pending reservation so that a retry may proceed.
func (s *MemoryStore) Release(_ context.Context, key, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	if record, ok := s.records[id]; ok && record.Scope == scope {
		delete(s.records, id)
	}
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	removed := 0
	for id, record := range s.records {
		if removed >= limit {
			break
		}
		if !expired(record, now) {
			continue
		}
		delete(s.records, id)
		removed++
	}
	return removed, nil
}
