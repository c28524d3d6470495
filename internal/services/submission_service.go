package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/platform/idempotency"
)

var (
	// ErrSubmissionInvalidInput indicates nothing to submit or incomplete contact details.
	ErrSubmissionInvalidInput = errors.New("submission: invalid input")
	// ErrSubmissionInProgress indicates another request holds the idempotency key.
	ErrSubmissionInProgress = errors.New("submission: in progress")
	// ErrSubmissionKeyConflict indicates the idempotency key belongs to another session.
	ErrSubmissionKeyConflict = errors.New("submission: idempotency key conflict")
	// ErrSubmissionFailed indicates the publisher rejected the submission. Retrying is safe.
	ErrSubmissionFailed = errors.New("submission: publish failed")
	// ErrSubmissionUnavailable indicates the receipt store could not be reached.
	ErrSubmissionUnavailable = errors.New("submission: unavailable")

	errSubmissionStoreRequired     = errors.New("submission service: session store is required")
	errSubmissionPublisherRequired = errors.New("submission service: publisher is required")
)

const maxIdempotencyKeyLength = 255

// SubmissionServiceDeps wires the submission service.
type SubmissionServiceDeps struct {
	Store            *SessionStore
	Publisher        SubmissionPublisher
	Receipts         idempotency.Store
	ReceiptTTL       time.Duration
	Formatter        *EstimateFormatter
	ResetAfterSubmit bool
	Clock            func() time.Time
	Logger           func(context.Context, string, map[string]any)
	IDGenerator      func() string
}

type submissionService struct {
	store     *SessionStore
	publisher SubmissionPublisher
	receipts  idempotency.Store
	ttl       time.Duration
	formatter *EstimateFormatter
	reset     bool
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewSubmissionService constructs a SubmissionService. Receipts may be nil, in which case
// idempotency keys are ignored.
func NewSubmissionService(deps SubmissionServiceDeps) (SubmissionService, error) {
	if deps.Store == nil {
		return nil, errSubmissionStoreRequired
	}
	if deps.Publisher == nil {
		return nil, errSubmissionPublisherRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	ttl := deps.ReceiptTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &submissionService{
		store:     deps.Store,
		publisher: deps.Publisher,
		receipts:  deps.Receipts,
		ttl:       ttl,
		formatter: deps.Formatter,
		reset:     deps.ResetAfterSubmit,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// Submit builds the submission from the session, publishes it outside the session lock and
// records the result under the idempotency key. A publish failure leaves pricing state as it
// was and releases the key so the caller can retry.
func (s *submissionService) Submit(ctx context.Context, cmd SubmitCommand) (SubmissionResult, error) {
	sessionID, err := normaliseSessionID(cmd.SessionID)
	if err != nil {
		return SubmissionResult{}, err
	}
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return SubmissionResult{}, fmt.Errorf("%w: idempotency key too long", ErrSubmissionInvalidInput)
	}

	var contact *domain.Contact
	if cmd.Contact != nil {
		cleaned, err := sanitizeContact(*cmd.Contact, true)
		if err != nil {
			return SubmissionResult{}, err
		}
		contact = &cleaned
	}

	useReceipts := s.receipts != nil && key != ""
	if useReceipts {
		replay, done, err := s.reserve(ctx, key, sessionID)
		if err != nil || done {
			return replay, err
		}
	}

	message, err := s.prepare(ctx, sessionID, contact, key)
	if err != nil {
		s.release(ctx, useReceipts, key, sessionID)
		return SubmissionResult{}, err
	}

	deliveryID, err := s.publisher.PublishSubmission(ctx, message)
	if err != nil {
		s.release(ctx, useReceipts, key, sessionID)
		s.logger(ctx, "submission.publish_failed", map[string]any{
			"sessionId":    sessionID,
			"submissionId": message.SubmissionID,
			"error":        err.Error(),
		})
		return SubmissionResult{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	result := SubmissionResult{Submission: message, DeliveryID: deliveryID}
	s.logger(ctx, "submission.published", map[string]any{
		"sessionId":    sessionID,
		"submissionId": message.SubmissionID,
		"deliveryId":   deliveryID,
		"services":     len(message.Services),
	})

	if useReceipts {
		s.complete(ctx, key, sessionID, result)
	}
	if s.reset {
		s.resetSession(ctx, sessionID)
	}
	return result, nil
}

func (s *submissionService) reserve(ctx context.Context, key, sessionID string) (SubmissionResult, bool, error) {
	reservation, err := s.receipts.Reserve(ctx, key, sessionID, s.now(), s.ttl)
	switch {
	case errors.Is(err, idempotency.ErrScopeMismatch):
		return SubmissionResult{}, true, ErrSubmissionKeyConflict
	case err != nil:
		return SubmissionResult{}, true, fmt.Errorf("%w: %v", ErrSubmissionUnavailable, err)
	}

	switch reservation.State {
	case idempotency.ReservationStateCompleted:
		var stored SubmissionResult
		if err := json.Unmarshal(reservation.Record.Result, &stored); err != nil {
			return SubmissionResult{}, true, fmt.Errorf("%w: decode stored result: %v", ErrSubmissionUnavailable, err)
		}
		stored.Replayed = true
		s.logger(ctx, "submission.replayed", map[string]any{"sessionId": sessionID, "submissionId": stored.Submission.SubmissionID})
		return stored, true, nil
	case idempotency.ReservationStatePending:
		return SubmissionResult{}, true, ErrSubmissionInProgress
	default:
		return SubmissionResult{}, false, nil
	}
}

// prepare snapshots the session under its lock, storing the contact when one is supplied.
func (s *submissionService) prepare(ctx context.Context, sessionID string, contact *domain.Contact, key string) (SubmissionMessage, error) {
	var submission domain.QuoteSubmission
	_, err := s.store.mutate(ctx, sessionID, func(ws *workspace, now time.Time) error {
		if contact != nil {
			ws.session.Contact = *contact
		}
		if _, err := sanitizeContact(ws.session.Contact, true); err != nil {
			return fmt.Errorf("%w: %v", ErrSubmissionInvalidInput, err)
		}
		if ws.quote.Len() == 0 && len(ws.plan.Items()) == 0 {
			return fmt.Errorf("%w: quote and plan are empty", ErrSubmissionInvalidInput)
		}

		submission = domain.QuoteSubmission{
			ID:          s.newID(),
			SessionID:   ws.session.ID,
			Contact:     ws.session.Contact,
			Currency:    ws.engine.Catalog().Currency,
			Services:    ws.quote.ConfiguredServices(),
			Combined:    ws.quote.CombinedTotals(),
			SubmittedAt: now,
		}
		if len(ws.plan.Items()) > 0 {
			summary := ws.plan.Summary()
			submission.Plan = &summary
		}
		return nil
	})
	if err != nil {
		return SubmissionMessage{}, err
	}
	return newSubmissionMessage(submission, s.formatter, key), nil
}

func (s *submissionService) complete(ctx context.Context, key, sessionID string, result SubmissionResult) {
	payload, err := json.Marshal(result)
	if err == nil {
		err = s.receipts.Complete(ctx, key, sessionID, payload, s.now(), s.ttl)
	}
	if err != nil {
		s.logger(ctx, "submission.receipt_failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
	}
}

func (s *submissionService) release(ctx context.Context, enabled bool, key, sessionID string) {
	if !enabled {
		return
	}
	if err := s.receipts.Release(ctx, key, sessionID); err != nil {
		s.logger(ctx, "submission.release_failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
	}
}

func (s *submissionService) resetSession(ctx context.Context, sessionID string) {
	_, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		ws.quote.Clear()
		ws.plan.Clear()
		clear(ws.builders)
		return nil
	})
	if err != nil {
		s.logger(ctx, "submission.reset_failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
	}
}
