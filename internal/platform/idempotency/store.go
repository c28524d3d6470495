package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle state of a submission receipt.
type Status string

const (
	// DefaultTTL is the default duration that receipts are retained.
	DefaultTTL = 24 * time.Hour
	// StatusPending indicates that a submission has reserved the key but has not finished.
	StatusPending Status = "pending"
	// StatusCompleted indicates that the submission result is stored and can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState describes the outcome of attempting to reserve a key.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and should process the submission.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a previous result was found and should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another caller is processing this key.
	ReservationStatePending
)

// Reservation is the result of Reserve, including the stored record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is a persisted receipt. Scope ties the key to one quote session.
type Record struct {
	Key       string
	Scope     string
	Status    Status
	Result    []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Store persists submission reservations and results.
type Store interface {
	Reserve(ctx context.Context, key, scope string, now time.Time, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key, scope string, result []byte, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, scope string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

var (
	// ErrScopeMismatch is returned when a key is reused for a different session.
	ErrScopeMismatch = errors.New("idempotency: key reserved for a different scope")
	// ErrKeyRequired is returned when the key is blank.
	ErrKeyRequired = errors.New("idempotency: key is required")
)

func documentID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func expired(record Record, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)
}

func copyBytes(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return append([]byte(nil), data...)
}
