package idempotency

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/finitefield/quote-configurator/internal/platform/firestore"
)

const (
	defaultCollection   = "submission_receipts"
	defaultCleanupLimit = 100
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store receipts.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name = strings.TrimSpace(name); name != "" {
			store.collection = name
		}
	}
}

// WithTxOptions forwards retry settings to every transaction.
func WithTxOptions(opts ...pfirestore.TxOption) FirestoreOption {
	return func(store *FirestoreStore) {
		store.txOpts = append(store.txOpts, opts...)
	}
}

// FirestoreStore implements Store backed by Google Cloud Firestore.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	txOpts     []pfirestore.TxOption
}

// NewFirestoreStore constructs a Firestore-backed receipt store.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		provider:   provider,
		collection: defaultCollection,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Reserve claims key for scope inside a transaction and returns any stored result.
func (s *FirestoreStore) Reserve(ctx context.Context, key, scope string, now time.Time, ttl time.Duration) (Reservation, error) {
	if strings.TrimSpace(key) == "" {
		return Reservation{}, ErrKeyRequired
	}
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref, err := s.ref(ctx, key)
	if err != nil {
		return Reservation{}, err
	}

	var result Reservation
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fresh := receiptDocument{
			Key:       key,
			Scope:     scope,
			Status:    string(StatusPending),
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(ttl),
		}

		snap, err := tx.Get(ref)
		if err != nil {
			if !pfirestore.IsNotFound(err) {
				return err
			}
			if err := tx.Set(ref, fresh); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: fresh.toRecord()}
			return nil
		}

		var doc receiptDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		record := doc.toRecord()
		if expired(record, now) {
			if err := tx.Set(ref, fresh); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: fresh.toRecord()}
			return nil
		}
		if record.Scope != scope {
			return ErrScopeMismatch
		}
		if record.Status == StatusCompleted {
			result = Reservation{State: ReservationStateCompleted, Record: record}
			return nil
		}
		result = Reservation{State: ReservationStatePending, Record: record}
		return nil
	}, s.txOpts...)
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// Complete persists the submission result associated with key.
func (s *FirestoreStore) Complete(ctx context.Context, key, scope string, result []byte, now time.Time, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	payload := copyBytes(result)

	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc := receiptDocument{Key: key, Scope: scope, CreatedAt: now}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Scope != scope {
				return ErrScopeMismatch
			}
		case !pfirestore.IsNotFound(err):
			return err
		}

		doc.Status = string(StatusCompleted)
		doc.Result = payload
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	}, s.txOpts...)
}

// Release removes a reservation owned by scope.
func (s *FirestoreStore) Release(ctx context.Context, key, scope string) error {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return nil
			}
			return err
		}
		var doc receiptDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Scope != scope {
			return nil
		}
		return tx.Delete(ref)
	}, s.txOpts...)
}

// CleanupExpired removes expired receipts up to limit.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = defaultCleanupLimit
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	docs, err := client.Collection(s.collection).Where("expires_at", "<=", now).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError(s.collection+".cleanup", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	writer := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := writer.Delete(doc.Ref)
		if err != nil {
			writer.End()
			return 0, pfirestore.WrapError(s.collection+".cleanup", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	removed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return removed, pfirestore.WrapError(s.collection+".cleanup", err)
		}
		removed++
	}
	return removed, nil
}

func (s *FirestoreStore) ref(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

type receiptDocument struct {
	Key       string    `firestore:"key"`
	Scope     string    `firestore:"scope"`
	Status    string    `firestore:"status"`
	Result    []byte    `firestore:"result,omitempty"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

func (d receiptDocument) toRecord() Record {
	return Record{
		Key:       d.Key,
		Scope:     d.Scope,
		Status:    Status(d.Status),
		Result:    copyBytes(d.Result),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}
